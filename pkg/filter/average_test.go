package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAverage_ClampsSize(t *testing.T) {
	assert.Equal(t, 1, NewAverage(0).Size())
	assert.Equal(t, 1, NewAverage(-3).Size())
	assert.Equal(t, 10, NewAverage(10).Size())
}

func TestAverage_WarmUpFromZeroFill(t *testing.T) {
	a := NewAverage(10)

	// First real sample is averaged against nine zero slots.
	assert.Equal(t, uint32(200), a.Push(2000))
	assert.Equal(t, uint32(400), a.Push(2000))
}

func TestAverage_SteadyState(t *testing.T) {
	a := NewAverage(10)

	var out uint32
	for i := 0; i < 10; i++ {
		out = a.Push(2000)
	}
	assert.Equal(t, uint32(2000), out, "constant input converges to itself after K samples")
}

func TestAverage_CursorWrapsAndEvictsOldest(t *testing.T) {
	a := NewAverage(3)

	a.Push(30) // [30 0 0]
	a.Push(60) // [30 60 0]
	assert.Equal(t, uint32(30), a.Push(0)) // [30 60 0] mean 30

	// Fourth push overwrites the oldest slot.
	assert.Equal(t, uint32(40), a.Push(60)) // [60 60 0] mean 40
}

func TestAverage_TruncatesMean(t *testing.T) {
	a := NewAverage(3)

	a.Push(1)
	a.Push(1)
	// (1+1+0)/3 truncates to 0.
	assert.Equal(t, uint32(0), a.Push(0))
}

func TestAverage_OutputBoundedByWindowContents(t *testing.T) {
	a := NewAverage(7)

	inputs := []uint32{4095, 0, 812, 3000, 55, 2048, 1024, 999, 4001, 3, 1500}
	for _, in := range inputs {
		out := a.Push(in)

		lo, hi := windowBounds(a)
		require.GreaterOrEqual(t, out, lo, "mean below smallest buffered value")
		require.LessOrEqual(t, out, hi, "mean above largest buffered value")
	}
}

func TestAverage_SizeOne(t *testing.T) {
	a := NewAverage(1)

	assert.Equal(t, uint32(123), a.Push(123))
	assert.Equal(t, uint32(4095), a.Push(4095))
}

func windowBounds(a *Average) (lo, hi uint32) {
	lo = a.window[0]
	hi = a.window[0]
	for _, v := range a.window {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
