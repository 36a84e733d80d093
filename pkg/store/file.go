package store

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// File keeps channel tuning in a single YAML file. Every Save re-reads the
// file, merges the entry and writes the whole document back, so entries
// written by hand or by earlier runs survive.
type File struct {
	mu   sync.Mutex
	path string
}

// document is the on-disk shape: a map of channel index to entry.
type document struct {
	Channels map[int]Entry `yaml:"channels"`
}

// NewFile creates a file-backed store at path. The file is created on the
// first Save; a missing file reads as empty.
func NewFile(path string) *File {
	return &File{path: path}
}

// Save writes the entry for the channel, preserving all other channels.
func (f *File) Save(channel int, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if doc.Channels == nil {
		doc.Channels = make(map[int]Entry)
	}
	doc.Channels[channel] = e

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal tuning: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tuning file: %w", err)
	}
	return nil
}

// Load reads the entry for the channel. ok is false when the channel has no
// saved entry or the file does not exist yet.
func (f *File) Load(channel int) (Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := doc.Channels[channel]
	return e, ok, nil
}

func (f *File) read() (document, error) {
	var doc document
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse tuning file: %w", err)
	}
	return doc, nil
}
