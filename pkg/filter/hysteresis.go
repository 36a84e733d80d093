// Package filter implements the two-stage conditioning applied to raw
// converter samples: a sliding hysteresis window that suppresses
// small-amplitude jitter, followed by a fixed-size running average.
package filter

// Hysteresis is a sliding window [Min, Max] of span Width.
//
// Values inside the window are reported as the window midpoint, so noise
// around a set point does not wiggle the output. Values outside the window
// are passed through unchanged and the window moves to straddle them, so a
// real transition shows up without lag.
type Hysteresis struct {
	Min   uint32
	Max   uint32
	Width uint32
}

// NewHysteresis returns a window of the given width seated at the low end of
// the calibrated range: [calMin, min(calMin+width, calMax)].
func NewHysteresis(width, calMin, calMax uint32) Hysteresis {
	h := Hysteresis{Width: width}
	h.Reposition(calMin, calMax)
	return h
}

// Reposition re-seats the window at the calibration floor. Called when the
// calibrated range changes so the window cannot be left outside it.
func (h *Hysteresis) Reposition(calMin, calMax uint32) {
	h.Min = calMin
	h.Max = calMin + h.Width
	if h.Max > calMax {
		h.Max = calMax
	}
}

// Apply feeds one raw value through the window and returns the filtered
// value. Window movement is clamped to [calMin, calMax]; the returned
// excursion value itself is not.
func (h *Hysteresis) Apply(x, calMin, calMax uint32) uint32 {
	if x >= h.Min && x <= h.Max {
		return h.Midpoint()
	}

	half := h.Width / 2

	if x > h.Max {
		// Slide up so the window straddles the excursion.
		h.Max = x + half
		if h.Max > calMax {
			h.Max = calMax
		}
		if h.Max > h.Width {
			h.Min = h.Max - h.Width
		} else {
			h.Min = 0
		}
		return x
	}

	// Slide down.
	if x > half {
		h.Min = x - half
	} else {
		h.Min = 0
	}
	if h.Min < calMin {
		h.Min = calMin
	}
	h.Max = h.Min + h.Width
	if h.Max > calMax {
		h.Max = calMax
	}
	return x
}

// Midpoint returns the value reported while the input sits inside the window.
func (h *Hysteresis) Midpoint() uint32 {
	return h.Min + (h.Max-h.Min)/2
}
