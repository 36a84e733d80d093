package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
)

// MockConfig tunes the simulated converter.
type MockConfig struct {
	SampleRate int           // aggregate samples per second across all inputs
	FrameSize  int           // samples per burst
	Period     time.Duration // waveform period
	Center     uint32        // waveform midline
	Amplitude  uint32        // peak deviation from the midline
	Jitter     uint32        // peak pseudo-noise added on top
}

// DefaultMockConfig returns the simulation tuning used when NewMock is given
// a nil configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		SampleRate: 2000,
		FrameSize:  64,
		Period:     2 * time.Second,
		Center:     2048,
		Amplitude:  1024,
		Jitter:     8,
	}
}

// Mock simulates the sampling frontend for testing and development. Each
// configured input carries a phase-shifted sine so channels are
// distinguishable on a display.
type Mock struct {
	cfg MockConfig

	mu      sync.Mutex
	inputs  []int
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	frames *frameBuffer
}

var (
	_ Device = (*Mock)(nil)
	_ Device = (*Serial)(nil)
)

// NewMock creates a simulated device. Zero rate, frame size or period fall
// back to the defaults; a zero center, amplitude or jitter is honored.
func NewMock(cfg *MockConfig) *Mock {
	def := DefaultMockConfig()
	c := def
	if cfg != nil {
		c = *cfg
		if c.SampleRate <= 0 {
			c.SampleRate = def.SampleRate
		}
		if c.FrameSize <= 0 {
			c.FrameSize = def.FrameSize
		}
		if c.Period <= 0 {
			c.Period = def.Period
		}
	}
	return &Mock{
		cfg:    c,
		frames: newFrameBuffer(BufferSamples),
	}
}

// Configure declares the inputs to simulate.
func (m *Mock) Configure(inputs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot configure while started")
	}
	if err := checkInputs(inputs); err != nil {
		return err
	}
	m.inputs = append([]int(nil), inputs...)
	return nil
}

// Start begins producing frames.
func (m *Mock) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("already started")
	}
	if len(m.inputs) == 0 {
		return ErrNotStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.started = true

	go m.generateFrames(ctx, done)

	return nil
}

// Stop ends the simulation. Safe on a device that never started, and safe to
// call twice.
func (m *Mock) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done
	return nil
}

// Ready returns the wake channel for buffered frames.
func (m *Mock) Ready() <-chan struct{} {
	return m.frames.ready
}

// Drain copies buffered samples into dst.
func (m *Mock) Drain(dst []Sample) (int, error) {
	return m.frames.drain(dst)
}

// generateFrames emits one burst per tick, round-robining samples across the
// configured inputs at the nominal sample rate.
func (m *Mock) generateFrames(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := time.Duration(float64(m.cfg.FrameSize) / float64(m.cfg.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	batch := make([]Sample, m.cfg.FrameSize)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := float32(now.Sub(start).Seconds())
			for i := range batch {
				t := elapsed + float32(i)/float32(m.cfg.SampleRate)
				input := m.inputs[i%len(m.inputs)]
				batch[i] = Sample{Input: input, Value: m.value(input, t)}
			}
			m.frames.push(batch)
		}
	}
}

// value computes the simulated reading for one input at time t, clamped to
// the converter range.
func (m *Mock) value(input int, t float32) uint32 {
	phase := 2 * math32.Pi * t / float32(m.cfg.Period.Seconds())
	// Offset each input so channels carry visibly different signals.
	phase += float32(input) * math32.Pi / 4

	v := float32(m.cfg.Center) + float32(m.cfg.Amplitude)*math32.Sin(phase)
	if m.cfg.Jitter > 0 {
		v += float32(m.cfg.Jitter) * 0.5 * (math32.Sin(t*997) + math32.Cos(t*1301))
	}

	if v < 0 {
		return 0
	}
	if v > MaxValue {
		return MaxValue
	}
	return uint32(v)
}
