package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMock_NilConfig(t *testing.T) {
	m := NewMock(nil)
	def := DefaultMockConfig()
	assert.Equal(t, def, m.cfg)
}

func TestNewMock_PartialConfig(t *testing.T) {
	m := NewMock(&MockConfig{Center: 100, Amplitude: 50})
	def := DefaultMockConfig()
	assert.Equal(t, def.SampleRate, m.cfg.SampleRate)
	assert.Equal(t, def.FrameSize, m.cfg.FrameSize)
	assert.Equal(t, def.Period, m.cfg.Period)
	assert.Equal(t, uint32(100), m.cfg.Center)
	assert.Equal(t, uint32(50), m.cfg.Amplitude)
	assert.Equal(t, uint32(0), m.cfg.Jitter)
}

func TestMock_StartWithoutConfigure(t *testing.T) {
	m := NewMock(nil)
	assert.ErrorIs(t, m.Start(), ErrNotStarted)
}

func TestMock_ConfigureWhileStarted(t *testing.T) {
	m := NewMock(&MockConfig{SampleRate: 1000, FrameSize: 4})
	require.NoError(t, m.Configure([]int{6}))
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Error(t, m.Configure([]int{7}))
}

func TestMock_ProducesFrames(t *testing.T) {
	m := NewMock(&MockConfig{
		SampleRate: 2000,
		FrameSize:  8,
		Period:     50 * time.Millisecond,
		Center:     2048,
		Amplitude:  1024,
		Jitter:     8,
	})
	require.NoError(t, m.Configure([]int{6, 7}))
	require.NoError(t, m.Start())
	defer m.Stop()

	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("no frame produced within 1s")
	}

	dst := make([]Sample, 64)
	n, err := m.Drain(dst)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	for _, s := range dst[:n] {
		assert.Contains(t, []int{6, 7}, s.Input)
		assert.LessOrEqual(t, s.Value, uint32(MaxValue))
	}
}

func TestMock_StopIsIdempotent(t *testing.T) {
	m := NewMock(&MockConfig{SampleRate: 1000, FrameSize: 4})
	require.NoError(t, m.Configure([]int{6}))
	require.NoError(t, m.Start())

	assert.NoError(t, m.Stop())
	assert.NoError(t, m.Stop())
}

func TestMock_StopBeforeStart(t *testing.T) {
	m := NewMock(nil)
	assert.NoError(t, m.Stop())
}

func TestMock_DoubleStart(t *testing.T) {
	m := NewMock(&MockConfig{SampleRate: 1000, FrameSize: 4})
	require.NoError(t, m.Configure([]int{6}))
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Error(t, m.Start())
}

func TestMock_ValueStaysInConverterRange(t *testing.T) {
	// Amplitude pushes the waveform past both rails; the output must clamp.
	m := NewMock(&MockConfig{
		SampleRate: 1000,
		FrameSize:  4,
		Period:     time.Second,
		Center:     2048,
		Amplitude:  4000,
	})
	m.inputs = []int{0}

	for i := 0; i < 200; i++ {
		v := m.value(0, float32(i)*0.01)
		assert.LessOrEqual(t, v, uint32(MaxValue))
	}
}
