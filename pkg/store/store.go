// Package store persists per-channel tuning so calibration survives restarts.
package store

// Entry is the tuning persisted for one channel.
type Entry struct {
	Min   uint32 `yaml:"min"`
	Max   uint32 `yaml:"max"`
	Width uint32 `yaml:"width"`
}

// Store saves and loads channel tuning. Implementations must tolerate
// concurrent calls. A channel with no saved entry is reported through the
// ok result, never as an error.
type Store interface {
	Save(channel int, e Entry) error
	Load(channel int) (Entry, bool, error)
}
