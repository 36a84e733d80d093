//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	uart = machine.UART0

	// Active inputs, chosen over serial with "c 6,7"
	inputs     [MAX_INPUTS]bool
	adcs       [MAX_INPUTS]machine.ADC
	configured bool

	// Per-input running sums for burst averaging
	sums   [MAX_INPUTS]uint32
	counts [MAX_INPUTS]int

	// Timing
	lastRead time.Time

	// Serial buffer for reading command lines
	serialBuffer [32]byte
	serialPos    int
)

func main() {
	// Configure UART for input selection and frame output
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// Initialize timing
	lastRead = time.Now()

	// Main loop
	for {
		now := time.Now()

		// Check for serial input (non-blocking)
		processSerial()

		// Read every active input at the same rate (every 1ms)
		if configured && now.Sub(lastRead) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			readInputs()
			lastRead = now
		}

		// Once a burst is collected, emit one frame and start over
		if burstReady() {
			outputFrame()
			resetSums()
		}

		// Small delay to prevent tight loop (but still allow precise timing)
		time.Sleep(100 * time.Microsecond)
	}
}

func readInputs() {
	for i := range adcs {
		if !inputs[i] {
			continue
		}
		value := adcs[i].Get()
		sums[i] += uint32(value)
		counts[i]++
	}
}

func burstReady() bool {
	for i := range counts {
		if inputs[i] && counts[i] >= NUM_SAMPLES {
			return true
		}
	}
	return false
}

func outputFrame() {
	// Output format: "input:value,input:value\n", values averaged over the burst
	// Example: "6:2048,7:1031\n"
	first := true
	for i := range adcs {
		if !inputs[i] {
			continue
		}
		n := counts[i]
		if n == 0 {
			n = 1 // Avoid division by zero
		}
		avg := sums[i] / uint32(n)

		if !first {
			print(",")
		}
		print(i)
		print(":")
		print(avg)
		first = false
	}
	if !first {
		print("\n")
	}
}

func resetSums() {
	for i := range sums {
		sums[i] = 0
		counts[i] = 0
	}
}

func processSerial() {
	// Read available bytes from serial
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleCommand()
			}
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
		// Overlong lines are truncated; the parser rejects what is left
	}
}

// handleCommand parses an input-selection line: 'c' followed by single-digit
// input ids separated by commas. A malformed line is dropped whole so a bad
// command never half-applies.
func handleCommand() {
	if serialBuffer[0] != 'c' {
		return
	}

	var requested [MAX_INPUTS]bool
	got := false
	expectDigit := true
	for i := 1; i < serialPos; i++ {
		ch := serialBuffer[i]
		switch {
		case ch == ' ':
			continue
		case ch == ',':
			if expectDigit {
				return
			}
			expectDigit = true
		case ch >= '0' && ch < '0'+MAX_INPUTS:
			if !expectDigit {
				return
			}
			requested[ch-'0'] = true
			got = true
			expectDigit = false
		default:
			return
		}
	}
	if !got || expectDigit {
		return
	}

	applyInputs(requested)
}

func applyInputs(requested [MAX_INPUTS]bool) {
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}

	for i := range requested {
		if requested[i] && !inputs[i] {
			pin := adcPins[i]
			pin.Configure(machine.PinConfig{Mode: machine.PinInput})
			adcs[i] = machine.ADC{Pin: pin}
			adcs[i].Configure(adcConfig)
		}
		inputs[i] = requested[i]
	}

	configured = true
	resetSums()
}
