// Package adc turns bursts of raw analog-to-digital conversions into stable,
// calibrated per-channel values.
//
// The package is built around two pieces: a Table of channel records guarded
// by a single bounded-wait lock, and an Engine that wakes on the converter's
// completion notification, drains the raw sample buffer and pushes every
// matched sample through a hysteresis window and a running average. Everything
// other firmware subsystems are allowed to touch goes through the accessor
// methods on Table; the Engine is the only writer of the filter pipeline.
package adc

import (
	"errors"

	"github.com/nicekhan23/analog-digital-converter/pkg/driver"
)

const (
	// RawCeil is the exclusive upper bound of the converter's value range
	// (2^12 for the 12-bit frontend). Calibration bounds may not exceed it.
	RawCeil uint32 = 1 << driver.ValueBits

	// MaxWidth is the largest hysteresis window span the accessor API accepts.
	MaxWidth uint32 = 1000

	// MaxChannels bounds the logical channel table.
	MaxChannels = 8

	// MaxAverageWindow bounds the running-average ring size.
	MaxAverageWindow = 1000
)

// Calibration is the valid output range configured for a channel. It clamps
// hysteresis window movement. Invariant: Min < Max <= RawCeil.
type Calibration struct {
	Min uint32
	Max uint32
}

// Errors returned by the accessor API. Validation failures are always
// distinct from lock contention, and persistence failures are always distinct
// from both: a caller seeing ErrNotPersisted holds a value that is already
// live in memory but may not survive a restart.
var (
	ErrInvalidChannel   = errors.New("adc: invalid channel index")
	ErrCalibrationRange = errors.New("adc: calibration bounds out of range")
	ErrWidthRange       = errors.New("adc: hysteresis width out of range")
	ErrBusy             = errors.New("adc: state lock busy")
	ErrNotPersisted     = errors.New("adc: value set but not persisted")
)
