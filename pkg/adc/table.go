package adc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nicekhan23/analog-digital-converter/pkg/config"
	"github.com/nicekhan23/analog-digital-converter/pkg/filter"
	"github.com/nicekhan23/analog-digital-converter/pkg/store"
)

// record is the per-channel state behind the table lock: the last raw sample,
// the last filter output, the calibration bounds and the two filter stages.
type record struct {
	raw      uint32
	filtered uint32
	cal      Calibration
	hyst     filter.Hysteresis
	avg      *filter.Average
}

// Table holds every channel record and enforces the locking discipline: one
// exclusive semaphore guards all records, every reader and writer acquires it
// with a bounded wait, and nobody holds it across I/O. The channel layout
// (names and physical inputs) is fixed at construction and readable without
// the lock.
type Table struct {
	names   []string
	inputs  []int
	records []record
	sem     *semaphore.Weighted
	store   store.Store
}

func newTable(cfg *config.Config, st store.Store) (*Table, error) {
	n := len(cfg.Channels)
	if n == 0 {
		return nil, errors.New("adc: no channels configured")
	}
	if n > MaxChannels {
		return nil, fmt.Errorf("adc: %d channels configured, limit is %d", n, MaxChannels)
	}
	if cfg.Filter.AverageWindow < 1 || cfg.Filter.AverageWindow > MaxAverageWindow {
		return nil, fmt.Errorf("adc: average window %d out of range [1, %d]", cfg.Filter.AverageWindow, MaxAverageWindow)
	}

	t := &Table{
		names:   make([]string, n),
		inputs:  make([]int, n),
		records: make([]record, n),
		sem:     semaphore.NewWeighted(1),
		store:   st,
	}
	seen := make(map[int]bool, n)
	for i, ch := range cfg.Channels {
		if seen[ch.Input] {
			return nil, fmt.Errorf("adc: input %d mapped to more than one channel", ch.Input)
		}
		seen[ch.Input] = true

		cal, width := channelTuning(cfg, i)
		if width < 1 || width > MaxWidth {
			return nil, fmt.Errorf("adc: channel %d: %w: %d", i, ErrWidthRange, width)
		}
		if cal.Min >= cal.Max || cal.Max > RawCeil {
			return nil, fmt.Errorf("adc: channel %d: %w: [%d, %d]", i, ErrCalibrationRange, cal.Min, cal.Max)
		}

		t.names[i] = ch.Name
		t.inputs[i] = ch.Input
		t.records[i] = record{
			cal:  cal,
			hyst: filter.NewHysteresis(width, cal.Min, cal.Max),
			avg:  filter.NewAverage(cfg.Filter.AverageWindow),
		}
	}
	return t, nil
}

// channelTuning resolves the effective calibration and hysteresis width for
// channel i: per-channel values from the configuration win, zero falls back
// to the filter-section default (full range for calibration).
func channelTuning(cfg *config.Config, i int) (Calibration, uint32) {
	ch := cfg.Channels[i]
	cal := Calibration{Min: ch.Min, Max: ch.Max}
	if cal.Max == 0 {
		cal.Max = RawCeil
	}
	width := ch.Width
	if width == 0 {
		width = cfg.Filter.HysteresisWidth
	}
	return cal, width
}

// Channels returns the number of configured logical channels.
func (t *Table) Channels() int {
	return len(t.records)
}

// Raw returns the channel's most recent unfiltered sample.
func (t *Table) Raw(ch int, wait time.Duration) (uint32, error) {
	if err := t.check(ch); err != nil {
		return 0, err
	}
	if err := t.acquire(wait); err != nil {
		return 0, err
	}
	v := t.records[ch].raw
	t.release()
	return v, nil
}

// Filtered returns the channel's most recent filter output.
func (t *Table) Filtered(ch int, wait time.Duration) (uint32, error) {
	if err := t.check(ch); err != nil {
		return 0, err
	}
	if err := t.acquire(wait); err != nil {
		return 0, err
	}
	v := t.records[ch].filtered
	t.release()
	return v, nil
}

// Calibration returns the channel's current calibration bounds.
func (t *Table) Calibration(ch int, wait time.Duration) (Calibration, error) {
	if err := t.check(ch); err != nil {
		return Calibration{}, err
	}
	if err := t.acquire(wait); err != nil {
		return Calibration{}, err
	}
	cal := t.records[ch].cal
	t.release()
	return cal, nil
}

// HysteresisWidth returns the channel's current window span.
func (t *Table) HysteresisWidth(ch int, wait time.Duration) (uint32, error) {
	if err := t.check(ch); err != nil {
		return 0, err
	}
	if err := t.acquire(wait); err != nil {
		return 0, err
	}
	w := t.records[ch].hyst.Width
	t.release()
	return w, nil
}

// SetCalibration replaces the channel's calibration bounds and reseats the
// hysteresis window at the new floor. The change takes effect for the next
// sample. When a store is attached the new tuning is written through after
// the lock is released; a store failure is reported as ErrNotPersisted and
// leaves the in-memory change in force.
func (t *Table) SetCalibration(ch int, cal Calibration, wait time.Duration) error {
	if err := t.check(ch); err != nil {
		return err
	}
	if cal.Min >= cal.Max || cal.Max > RawCeil {
		return fmt.Errorf("%w: [%d, %d]", ErrCalibrationRange, cal.Min, cal.Max)
	}
	if err := t.acquire(wait); err != nil {
		return err
	}
	rec := &t.records[ch]
	rec.cal = cal
	rec.hyst.Reposition(cal.Min, cal.Max)
	width := rec.hyst.Width
	t.release()
	return t.persist(ch, cal, width)
}

// SetHysteresisWidth replaces the channel's window span and reseats the
// window at the calibration floor. Persistence follows the SetCalibration
// rules.
func (t *Table) SetHysteresisWidth(ch int, width uint32, wait time.Duration) error {
	if err := t.check(ch); err != nil {
		return err
	}
	if width < 1 || width > MaxWidth {
		return fmt.Errorf("%w: %d", ErrWidthRange, width)
	}
	if err := t.acquire(wait); err != nil {
		return err
	}
	rec := &t.records[ch]
	rec.hyst = filter.NewHysteresis(width, rec.cal.Min, rec.cal.Max)
	cal := rec.cal
	t.release()
	return t.persist(ch, cal, width)
}

// ChannelStatus is a point-in-time copy of one channel's state, safe to keep
// after the lock is gone.
type ChannelStatus struct {
	Name      string
	Input     int
	Raw       uint32
	Filtered  uint32
	Cal       Calibration
	Width     uint32
	WindowMin uint32
	WindowMax uint32
}

// Snapshot copies the state of every channel in a single lock hold.
func (t *Table) Snapshot(wait time.Duration) ([]ChannelStatus, error) {
	out := make([]ChannelStatus, len(t.records))
	if err := t.acquire(wait); err != nil {
		return nil, err
	}
	for i := range t.records {
		rec := &t.records[i]
		out[i] = ChannelStatus{
			Name:      t.names[i],
			Input:     t.inputs[i],
			Raw:       rec.raw,
			Filtered:  rec.filtered,
			Cal:       rec.cal,
			Width:     rec.hyst.Width,
			WindowMin: rec.hyst.Min,
			WindowMax: rec.hyst.Max,
		}
	}
	t.release()
	return out, nil
}

// apply runs one matched sample through the filter pipeline inside a single
// bounded critical section. It reports false when the lock could not be
// obtained in time; the sample is dropped and the running state catches up on
// the next one.
func (t *Table) apply(idx int, raw uint32, wait time.Duration) bool {
	if err := t.acquire(wait); err != nil {
		return false
	}
	rec := &t.records[idx]
	rec.raw = raw
	held := rec.hyst.Apply(raw, rec.cal.Min, rec.cal.Max)
	rec.filtered = rec.avg.Push(held)
	t.release()
	return true
}

// lookup resolves a physical input to its logical channel index, or -1 when
// no channel samples that input. The input table is immutable after
// construction, so no lock is taken.
func (t *Table) lookup(input int) int {
	for i, in := range t.inputs {
		if in == input {
			return i
		}
	}
	return -1
}

// loadStored overrides configuration defaults with persisted tuning. Entries
// that are absent keep the defaults; entries that fail to load or fail
// validation are logged and skipped, never fatal.
func (t *Table) loadStored(wait time.Duration) {
	if t.store == nil {
		return
	}
	for ch := range t.records {
		e, ok, err := t.store.Load(ch)
		if err != nil {
			log.Printf("adc: load stored tuning for channel %d: %v", ch, err)
			continue
		}
		if !ok {
			continue
		}
		if e.Min >= e.Max || e.Max > RawCeil || e.Width < 1 || e.Width > MaxWidth {
			log.Printf("adc: stored tuning for channel %d out of range, keeping defaults", ch)
			continue
		}
		if err := t.acquire(wait); err != nil {
			log.Printf("adc: apply stored tuning for channel %d: %v", ch, err)
			continue
		}
		rec := &t.records[ch]
		rec.cal = Calibration{Min: e.Min, Max: e.Max}
		rec.hyst = filter.NewHysteresis(e.Width, e.Min, e.Max)
		t.release()
	}
}

func (t *Table) check(ch int) error {
	if ch < 0 || ch >= len(t.records) {
		return fmt.Errorf("%w: %d (have %d channels)", ErrInvalidChannel, ch, len(t.records))
	}
	return nil
}

// acquire takes the table lock, waiting at most wait. A non-positive wait
// degrades to a single try. Contention past the deadline surfaces as ErrBusy.
func (t *Table) acquire(wait time.Duration) error {
	if t.sem.TryAcquire(1) {
		return nil
	}
	if wait <= 0 {
		return ErrBusy
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return ErrBusy
	}
	return nil
}

func (t *Table) release() {
	t.sem.Release(1)
}

// persist writes the channel's tuning through to the store, outside the lock.
func (t *Table) persist(ch int, cal Calibration, width uint32) error {
	if t.store == nil {
		return nil
	}
	if err := t.store.Save(ch, store.Entry{Min: cal.Min, Max: cal.Max, Width: width}); err != nil {
		return fmt.Errorf("%w: channel %d: %v", ErrNotPersisted, ch, err)
	}
	return nil
}
