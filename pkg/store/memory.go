package store

import "sync"

// Memory is an in-process store for tests and for running without a tuning
// file. SaveErr and LoadErr inject failures.
type Memory struct {
	SaveErr error
	LoadErr error

	mu      sync.Mutex
	entries map[int]Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[int]Entry)}
}

// Save records the entry, or returns SaveErr when set.
func (m *Memory) Save(channel int, e Entry) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[channel] = e
	return nil
}

// Load returns the entry for the channel, or returns LoadErr when set.
func (m *Memory) Load(channel int) (Entry, bool, error) {
	if m.LoadErr != nil {
		return Entry{}, false, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[channel]
	return e, ok, nil
}

// Len reports how many channels have saved entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
