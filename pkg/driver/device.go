// Package driver talks to the sampling frontend. The real frontend is a small
// board streaming conversion frames over a serial port; a mock produces
// synthetic waveforms for development without hardware. Both buffer samples
// internally and wake the consumer through a coalescing ready channel, the
// software analogue of a conversion-complete interrupt.
package driver

import (
	"errors"
	"log"
	"sync"
)

// Sample is one raw conversion: the physical input it was measured on and the
// 12-bit value.
type Sample struct {
	Input int
	Value uint32
}

const (
	// ValueBits is the converter resolution.
	ValueBits = 12
	// MaxValue is the largest raw reading a device may deliver.
	MaxValue = 1<<ValueBits - 1
	// MaxInput is the highest physical input id on the frontend.
	MaxInput = 7
	// BufferSamples is the capacity of a device's internal sample buffer.
	BufferSamples = 1024
)

var (
	// ErrNoData reports that a drain found the sample buffer empty. The
	// acquisition loop records it as a wait timeout and keeps going.
	ErrNoData = errors.New("driver: no samples buffered")
	// ErrNotStarted reports use of a device before Configure and Start.
	ErrNotStarted = errors.New("driver: device not started")
)

// Device is the contract the acquisition engine needs from a sampling
// frontend. Implementations deliver conversions in bursts: they buffer
// samples internally, raise Ready and hand the batch out through Drain.
type Device interface {
	// Configure declares the physical inputs to sample. Must be called
	// before Start.
	Configure(inputs []int) error

	// Start begins continuous sampling.
	Start() error

	// Stop ends sampling and releases resources. Safe on a device that
	// never started, and safe to call twice.
	Stop() error

	// Ready signals buffered samples waiting to be drained. The channel
	// has capacity one and sends are dropped when it is full, so one wake
	// may cover several bursts.
	Ready() <-chan struct{}

	// Drain copies buffered samples into dst, oldest first, and returns
	// how many were copied. An empty buffer returns ErrNoData; a dead
	// device surfaces its fault here.
	Drain(dst []Sample) (int, error)
}

// frameBuffer is the buffered-burst core shared by the device
// implementations: a fixed ring of samples plus a capacity-one wake channel.
// When the ring fills, the oldest samples are overwritten; the producer is
// never blocked and never drops fresh data.
type frameBuffer struct {
	mu      sync.Mutex
	buf     []Sample
	head    int // next write position
	count   int
	failed  error
	dropped bool // overwrote unread samples since the last drain
	ready   chan struct{}
}

func newFrameBuffer(capacity int) *frameBuffer {
	return &frameBuffer{
		buf:   make([]Sample, capacity),
		ready: make(chan struct{}, 1),
	}
}

// push appends samples and raises the ready signal without ever blocking.
func (b *frameBuffer) push(samples []Sample) {
	b.mu.Lock()
	for _, s := range samples {
		b.buf[b.head] = s
		b.head = (b.head + 1) % len(b.buf)
		if b.count == len(b.buf) {
			if !b.dropped {
				log.Printf("driver: sample buffer full (%d), overwriting oldest", len(b.buf))
				b.dropped = true
			}
			continue
		}
		b.count++
	}
	b.mu.Unlock()
	b.wake()
}

// fail records a permanent device fault and wakes the consumer so the fault
// is seen. Buffered samples drain out first.
func (b *frameBuffer) fail(err error) {
	b.mu.Lock()
	b.failed = err
	b.mu.Unlock()
	b.wake()
}

// drain copies out up to len(dst) of the oldest buffered samples. When
// samples remain after a partial drain the ready signal is re-raised.
func (b *frameBuffer) drain(dst []Sample) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		if b.failed != nil {
			return 0, b.failed
		}
		return 0, ErrNoData
	}
	n := b.count
	if n > len(dst) {
		n = len(dst)
	}
	start := (b.head - b.count + len(b.buf)) % len(b.buf)
	for i := 0; i < n; i++ {
		dst[i] = b.buf[(start+i)%len(b.buf)]
	}
	b.count -= n
	b.dropped = false
	if b.count > 0 {
		b.wake()
	}
	return n, nil
}

func (b *frameBuffer) wake() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}
