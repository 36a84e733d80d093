//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 1  // read interval per active input in milliseconds
	NUM_SAMPLES        = 20 // samples averaged into one frame value

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Frontend size: frame pairs carry single-digit input ids
	MAX_INPUTS = 8

	// Serial configuration
	// Frame format "i:v,i:v,...\n": 8 inputs * 7 bytes = ~56 bytes max per line
	// 50 frames/sec * 56 bytes/line = 2,800 bytes/sec
	// UART 8N1: 10 bits/byte = 11,520 bytes/sec at 115200, ~4x headroom
	UART_BAUD_RATE = 115200
)

// adcPins maps wire-protocol input ids onto the board's analog pins.
var adcPins = [MAX_INPUTS]machine.Pin{
	machine.A0, machine.A1, machine.A2, machine.A3,
	machine.A4, machine.A5, machine.A6, machine.A7,
}
