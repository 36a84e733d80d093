package adc

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicekhan23/analog-digital-converter/pkg/config"
	"github.com/nicekhan23/analog-digital-converter/pkg/store"
)

// testWait is generous: tests never want to trip over lock timing unless they
// are holding the lock on purpose.
const testWait = 100 * time.Millisecond

func testConfig(channels int) *config.Config {
	inputs := []int{6, 7, 2, 3, 4, 5, 0, 1}
	cfg := config.Default()
	cfg.Channels = nil
	for i := 0; i < channels; i++ {
		cfg.Channels = append(cfg.Channels, config.ChannelConfig{
			Name:  fmt.Sprintf("ch%d", i),
			Input: inputs[i],
		})
	}
	return cfg
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:   "two channels",
			mutate: func(c *config.Config) {},
		},
		{
			name: "eight channels",
			mutate: func(c *config.Config) {
				*c = *testConfig(8)
			},
		},
		{
			name: "no channels",
			mutate: func(c *config.Config) {
				c.Channels = nil
			},
			wantErr: true,
		},
		{
			name: "too many channels",
			mutate: func(c *config.Config) {
				*c = *testConfig(8)
				c.Channels = append(c.Channels, config.ChannelConfig{Name: "ch8", Input: 6})
			},
			wantErr: true,
		},
		{
			name: "duplicate input",
			mutate: func(c *config.Config) {
				c.Channels[1].Input = c.Channels[0].Input
			},
			wantErr: true,
		},
		{
			name: "zero average window",
			mutate: func(c *config.Config) {
				c.Filter.AverageWindow = 0
			},
			wantErr: true,
		},
		{
			name: "oversized average window",
			mutate: func(c *config.Config) {
				c.Filter.AverageWindow = MaxAverageWindow + 1
			},
			wantErr: true,
		},
		{
			name: "oversized channel width",
			mutate: func(c *config.Config) {
				c.Channels[0].Width = MaxWidth + 1
			},
			wantErr: true,
		},
		{
			name: "inverted channel calibration",
			mutate: func(c *config.Config) {
				c.Channels[0].Min = 3000
				c.Channels[0].Max = 2000
			},
			wantErr: true,
		},
		{
			name: "calibration past the converter range",
			mutate: func(c *config.Config) {
				c.Channels[0].Max = RawCeil + 1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(2)
			tt.mutate(cfg)
			tbl, err := newTable(cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(cfg.Channels), tbl.Channels())
		})
	}
}

func TestNewTable_DefaultsAndOverrides(t *testing.T) {
	cfg := testConfig(2)
	cfg.Channels[1].Min = 200
	cfg.Channels[1].Max = 3800
	cfg.Channels[1].Width = 80

	tbl, err := newTable(cfg, nil)
	require.NoError(t, err)

	snap, err := tbl.Snapshot(testWait)
	require.NoError(t, err)
	require.Len(t, snap, 2)

	// Channel 0 inherits the filter-section defaults: full range, width 40.
	assert.Equal(t, Calibration{Min: 0, Max: RawCeil}, snap[0].Cal)
	assert.Equal(t, uint32(40), snap[0].Width)
	assert.Equal(t, uint32(0), snap[0].WindowMin)
	assert.Equal(t, uint32(40), snap[0].WindowMax)

	// Channel 1 carries its own tuning, window seated at the floor.
	assert.Equal(t, Calibration{Min: 200, Max: 3800}, snap[1].Cal)
	assert.Equal(t, uint32(80), snap[1].Width)
	assert.Equal(t, uint32(200), snap[1].WindowMin)
	assert.Equal(t, uint32(280), snap[1].WindowMax)
}

func TestTable_ValidationBeforeLock(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)

	// Hold the lock for the whole test: validation failures must never be
	// reported as contention.
	require.NoError(t, tbl.acquire(0))
	defer tbl.release()

	_, err = tbl.Raw(2, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = tbl.Filtered(-1, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = tbl.Calibration(99, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = tbl.HysteresisWidth(2, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	err = tbl.SetCalibration(2, Calibration{Min: 0, Max: RawCeil}, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	err = tbl.SetHysteresisWidth(2, 40, 0)
	assert.ErrorIs(t, err, ErrInvalidChannel)

	err = tbl.SetCalibration(0, Calibration{Min: 3000, Max: 2000}, 0)
	assert.ErrorIs(t, err, ErrCalibrationRange)
	err = tbl.SetCalibration(0, Calibration{Min: 100, Max: 100}, 0)
	assert.ErrorIs(t, err, ErrCalibrationRange)
	err = tbl.SetCalibration(0, Calibration{Min: 0, Max: RawCeil + 1}, 0)
	assert.ErrorIs(t, err, ErrCalibrationRange)

	err = tbl.SetHysteresisWidth(0, 0, 0)
	assert.ErrorIs(t, err, ErrWidthRange)
	err = tbl.SetHysteresisWidth(0, MaxWidth+1, 0)
	assert.ErrorIs(t, err, ErrWidthRange)

	// Only a fully valid request may hit the lock and see it busy.
	_, err = tbl.Raw(0, 0)
	assert.ErrorIs(t, err, ErrBusy)
	err = tbl.SetHysteresisWidth(0, 40, 0)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestTable_BoundedWait(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)

	require.NoError(t, tbl.acquire(0))

	start := time.Now()
	_, err = tbl.Raw(0, 20*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrBusy)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	tbl.release()

	_, err = tbl.Raw(0, 20*time.Millisecond)
	assert.NoError(t, err)
}

func TestTable_ApplyRunsThePipeline(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)

	require.True(t, tbl.apply(0, 2000, testWait))

	raw, err := tbl.Raw(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), raw)

	// One sample into a ten-slot window: the empty slots still count.
	filtered, err := tbl.Filtered(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), filtered)

	for i := 0; i < 9; i++ {
		require.True(t, tbl.apply(0, 2000, testWait))
	}
	filtered, err = tbl.Filtered(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), filtered)

	// The other channel never saw a sample.
	raw, err = tbl.Raw(1, testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), raw)
}

func TestTable_ReadsAreIdempotent(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)
	require.True(t, tbl.apply(0, 1234, testWait))

	first, err := tbl.Filtered(0, testWait)
	require.NoError(t, err)
	second, err := tbl.Filtered(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstRaw, err := tbl.Raw(0, testWait)
	require.NoError(t, err)
	secondRaw, err := tbl.Raw(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, firstRaw, secondRaw)
}

func TestTable_ApplyDropsWhenBusy(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)

	require.NoError(t, tbl.acquire(0))
	assert.False(t, tbl.apply(0, 2000, time.Millisecond))
	tbl.release()

	// The dropped sample left no trace.
	raw, err := tbl.Raw(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), raw)
}

func TestTable_SetCalibrationReseatsWindow(t *testing.T) {
	st := store.NewMemory()
	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)

	require.NoError(t, tbl.SetCalibration(0, Calibration{Min: 1000, Max: 3000}, testWait))

	cal, err := tbl.Calibration(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, Calibration{Min: 1000, Max: 3000}, cal)

	snap, err := tbl.Snapshot(testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), snap[0].WindowMin)
	assert.Equal(t, uint32(1040), snap[0].WindowMax)

	// Written through to the store, width included.
	e, ok, err := st.Load(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.Entry{Min: 1000, Max: 3000, Width: 40}, e)
}

func TestTable_SetCalibrationRejectionLeavesState(t *testing.T) {
	st := store.NewMemory()
	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)

	before, err := tbl.Calibration(0, testWait)
	require.NoError(t, err)

	err = tbl.SetCalibration(0, Calibration{Min: 10, Max: 5}, testWait)
	assert.ErrorIs(t, err, ErrCalibrationRange)

	after, err := tbl.Calibration(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, st.Len())
}

func TestTable_SetHysteresisWidth(t *testing.T) {
	st := store.NewMemory()
	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)

	require.NoError(t, tbl.SetHysteresisWidth(1, 100, testWait))

	w, err := tbl.HysteresisWidth(1, testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), w)

	snap, err := tbl.Snapshot(testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), snap[1].WindowMin)
	assert.Equal(t, uint32(100), snap[1].WindowMax)

	e, ok, err := st.Load(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.Entry{Min: 0, Max: RawCeil, Width: 100}, e)
}

func TestTable_BusyWriteTouchesNothing(t *testing.T) {
	st := store.NewMemory()
	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)

	require.NoError(t, tbl.acquire(0))
	err = tbl.SetCalibration(0, Calibration{Min: 100, Max: 3000}, time.Millisecond)
	tbl.release()

	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 0, st.Len())

	cal, err := tbl.Calibration(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, Calibration{Min: 0, Max: RawCeil}, cal)
}

func TestTable_PersistFailureKeepsInMemoryChange(t *testing.T) {
	st := store.NewMemory()
	st.SaveErr = assert.AnError
	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)

	err = tbl.SetCalibration(0, Calibration{Min: 100, Max: 3000}, testWait)
	assert.ErrorIs(t, err, ErrNotPersisted)

	// The change is live despite the failed write-through.
	cal, err := tbl.Calibration(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, Calibration{Min: 100, Max: 3000}, cal)
}

func TestTable_NilStore(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)

	assert.NoError(t, tbl.SetCalibration(0, Calibration{Min: 100, Max: 3000}, testWait))
	tbl.loadStored(testWait)
}

func TestTable_LoadStored(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Save(1, store.Entry{Min: 100, Max: 4000, Width: 60}))

	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)
	tbl.loadStored(testWait)

	cal, err := tbl.Calibration(1, testWait)
	require.NoError(t, err)
	assert.Equal(t, Calibration{Min: 100, Max: 4000}, cal)

	snap, err := tbl.Snapshot(testWait)
	require.NoError(t, err)
	assert.Equal(t, uint32(60), snap[1].Width)
	assert.Equal(t, uint32(100), snap[1].WindowMin)
	assert.Equal(t, uint32(160), snap[1].WindowMax)

	// Channel 0 had no entry and keeps its defaults.
	assert.Equal(t, Calibration{Min: 0, Max: RawCeil}, snap[0].Cal)
	assert.Equal(t, uint32(40), snap[0].Width)
}

func TestTable_LoadStoredSkipsBadEntries(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Save(0, store.Entry{Min: 3000, Max: 2000, Width: 40}))
	require.NoError(t, st.Save(1, store.Entry{Min: 0, Max: RawCeil, Width: MaxWidth + 1}))

	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)
	tbl.loadStored(testWait)

	snap, err := tbl.Snapshot(testWait)
	require.NoError(t, err)
	assert.Equal(t, Calibration{Min: 0, Max: RawCeil}, snap[0].Cal)
	assert.Equal(t, uint32(40), snap[1].Width)
}

func TestTable_LoadStoredToleratesStoreErrors(t *testing.T) {
	st := store.NewMemory()
	st.LoadErr = assert.AnError

	tbl, err := newTable(testConfig(2), st)
	require.NoError(t, err)
	tbl.loadStored(testWait)

	cal, err := tbl.Calibration(0, testWait)
	require.NoError(t, err)
	assert.Equal(t, Calibration{Min: 0, Max: RawCeil}, cal)
}

func TestTable_Lookup(t *testing.T) {
	tbl, err := newTable(testConfig(2), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, tbl.lookup(6))
	assert.Equal(t, 1, tbl.lookup(7))
	assert.Equal(t, -1, tbl.lookup(5))
	assert.Equal(t, -1, tbl.lookup(-1))
}

func TestTable_ConcurrentAccess(t *testing.T) {
	st := store.NewMemory()
	tbl, err := newTable(testConfig(4), st)
	require.NoError(t, err)

	const iterations = 500
	var wg sync.WaitGroup

	// Writer hammering the pipeline like the acquisition loop would.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			tbl.apply(i%4, uint32(i%int(RawCeil)), testWait)
		}
	}()

	// Readers and tuners competing for the same lock.
	for ch := 0; ch < 4; ch++ {
		wg.Add(1)
		go func(ch int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if _, err := tbl.Filtered(ch, testWait); err != nil {
					assert.ErrorIs(t, err, ErrBusy)
				}
				if _, err := tbl.Raw(ch, testWait); err != nil {
					assert.ErrorIs(t, err, ErrBusy)
				}
			}
		}(ch)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			err := tbl.SetHysteresisWidth(0, uint32(20+i), testWait)
			if err != nil {
				assert.ErrorIs(t, err, ErrBusy)
			}
		}
	}()

	wg.Wait()

	// The table is still coherent: every read succeeds and stays in range.
	snap, err := tbl.Snapshot(testWait)
	require.NoError(t, err)
	for _, chs := range snap {
		assert.Less(t, chs.Raw, RawCeil)
		assert.Less(t, chs.Filtered, RawCeil)
	}
}
