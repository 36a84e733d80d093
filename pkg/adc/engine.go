package adc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicekhan23/analog-digital-converter/pkg/config"
	"github.com/nicekhan23/analog-digital-converter/pkg/driver"
	"github.com/nicekhan23/analog-digital-converter/pkg/store"
)

// Counters are the engine's acquisition diagnostics. They only ever grow and
// are updated without taking the table lock.
type Counters struct {
	// Conversions counts successfully drained sample bursts.
	Conversions atomic.Uint64
	// InvalidChannel counts samples whose physical input matched no channel.
	InvalidChannel atomic.Uint64
	// ReadErrors counts drains that failed outright.
	ReadErrors atomic.Uint64
	// Timeouts counts wakeups that found no data buffered.
	Timeouts atomic.Uint64
}

// Status is a point-in-time view of the whole subsystem for status displays.
type Status struct {
	Running        bool
	Conversions    uint64
	InvalidChannel uint64
	ReadErrors     uint64
	Timeouts       uint64
	Channels       []ChannelStatus
}

// Engine owns the acquisition worker: it waits for the device's ready signal,
// drains buffered samples, demultiplexes them onto logical channels and runs
// each one through the channel's filter pipeline. The embedded Table is the
// read/write surface for everyone else.
type Engine struct {
	*Table

	dev      driver.Device
	lockWait time.Duration
	buf      []driver.Sample

	counters Counters

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds an engine from the configuration. The device is not touched
// until Start. A nil store disables persistence.
func New(cfg *config.Config, dev driver.Device, st store.Store) (*Engine, error) {
	tbl, err := newTable(cfg, st)
	if err != nil {
		return nil, err
	}
	wait := cfg.Engine.LockWait
	if wait <= 0 {
		wait = 10 * time.Millisecond
	}
	size := cfg.Engine.DrainBuffer
	if size < 1 {
		size = 256
	}
	return &Engine{
		Table:    tbl,
		dev:      dev,
		lockWait: wait,
		buf:      make([]driver.Sample, size),
	}, nil
}

// Start applies persisted tuning, configures and starts the device, and
// launches the acquisition worker. It fails when the engine is already
// running or the device refuses the channel layout.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("adc: engine already started")
	}

	e.loadStored(e.lockWait)

	if err := e.dev.Configure(e.inputs); err != nil {
		return fmt.Errorf("configure converter: %w", err)
	}
	if err := e.dev.Start(); err != nil {
		return fmt.Errorf("start converter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.started = true
	go e.run(ctx, done)
	return nil
}

// Stop terminates the worker, waits for it to exit, then stops the device.
// It is safe on an engine that never started and safe to call twice.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	return e.dev.Stop()
}

// Status snapshots the channel table and the counters. The counters are read
// without the lock, so they may be a beat ahead of the channel values.
func (e *Engine) Status(wait time.Duration) (Status, error) {
	channels, err := e.Snapshot(wait)
	if err != nil {
		return Status{}, err
	}
	e.mu.Lock()
	running := e.started
	e.mu.Unlock()
	return Status{
		Running:        running,
		Conversions:    e.counters.Conversions.Load(),
		InvalidChannel: e.counters.InvalidChannel.Load(),
		ReadErrors:     e.counters.ReadErrors.Load(),
		Timeouts:       e.counters.Timeouts.Load(),
		Channels:       channels,
	}, nil
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.dev.Ready():
		}

		n, err := e.dev.Drain(e.buf)
		if errors.Is(err, driver.ErrNoData) {
			e.counters.Timeouts.Add(1)
			continue
		}
		if err != nil {
			e.counters.ReadErrors.Add(1)
			continue
		}

		for _, s := range e.buf[:n] {
			idx := e.lookup(s.Input)
			if idx < 0 {
				e.counters.InvalidChannel.Add(1)
				continue
			}
			e.apply(idx, s.Value, e.lockWait)
		}
		e.counters.Conversions.Add(1)
	}
}
