package filter

// Average is a running average over the last K samples, kept in a
// fixed-capacity ring.
//
// The ring starts zero-filled, so the mean is biased toward zero until K real
// samples have arrived. That warm-up transient is expected behavior.
type Average struct {
	window []uint32
	cursor int
}

// NewAverage returns an averager over the last size samples. A size below 1
// is treated as 1 (no smoothing).
func NewAverage(size int) *Average {
	if size < 1 {
		size = 1
	}
	return &Average{window: make([]uint32, size)}
}

// Push stores y in the slot under the write cursor, advances the cursor
// modulo K and returns the truncated integer mean of the whole window.
func (a *Average) Push(y uint32) uint32 {
	a.window[a.cursor] = y
	a.cursor = (a.cursor + 1) % len(a.window)

	var sum uint64
	for _, v := range a.window {
		sum += uint64(v)
	}
	return uint32(sum / uint64(len(a.window)))
}

// Size returns the window capacity K.
func (a *Average) Size() int {
	return len(a.window)
}
