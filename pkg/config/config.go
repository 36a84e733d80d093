package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial   SerialConfig    `yaml:"serial"`
	Channels []ChannelConfig `yaml:"channels"`
	Filter   FilterConfig    `yaml:"filter"`
	Engine   EngineConfig    `yaml:"engine"`
	Store    StoreConfig     `yaml:"store"`
	Mock     MockConfig      `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// ChannelConfig maps one logical channel onto a physical converter input.
// Min, Max and Width override the filter-section defaults for this channel;
// a zero Max or Width means "use the default".
type ChannelConfig struct {
	Name  string `yaml:"name"`
	Input int    `yaml:"input"`
	Min   uint32 `yaml:"min,omitempty"`
	Max   uint32 `yaml:"max,omitempty"`
	Width uint32 `yaml:"width,omitempty"`
}

// FilterConfig contains the default filter tuning applied to every channel.
type FilterConfig struct {
	AverageWindow   int    `yaml:"average_window"`   // running-average slots
	HysteresisWidth uint32 `yaml:"hysteresis_width"` // window span in raw counts
}

// EngineConfig contains acquisition engine parameters.
type EngineConfig struct {
	LockWait    time.Duration `yaml:"lock_wait"`    // bound on waiting for the channel table lock
	DrainBuffer int           `yaml:"drain_buffer"` // samples taken from the device per wakeup
}

// StoreConfig contains tuning persistence configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	SampleRate int           `yaml:"sample_rate"` // aggregate samples per second
	FrameSize  int           `yaml:"frame_size"`  // samples per burst
	Period     time.Duration `yaml:"period"`      // waveform period
	Center     uint32        `yaml:"center"`      // waveform midline in raw counts
	Amplitude  uint32        `yaml:"amplitude"`   // peak deviation from the midline
	Jitter     uint32        `yaml:"jitter"`      // peak pseudo-noise added on top
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyACM0", // Default for Linux, "COM3" style on Windows
			Baud: 115200,
		},
		Channels: []ChannelConfig{
			{Name: "ch0", Input: 6},
			{Name: "ch1", Input: 7},
		},
		Filter: FilterConfig{
			AverageWindow:   10,
			HysteresisWidth: 40,
		},
		Engine: EngineConfig{
			LockWait:    10 * time.Millisecond,
			DrainBuffer: 256,
		},
		Store: StoreConfig{
			Path: "tuning.yaml",
		},
		Mock: MockConfig{
			SampleRate: 2000,
			FrameSize:  64,
			Period:     2 * time.Second,
			Center:     2048,
			Amplitude:  1024,
			Jitter:     8,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if
// missing. Per-channel overrides and the mock waveform shape are left alone:
// zero is meaningful there.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if len(c.Channels) == 0 {
		c.Channels = def.Channels
	}
	for i := range c.Channels {
		if c.Channels[i].Name == "" {
			c.Channels[i].Name = fmt.Sprintf("ch%d", i)
		}
	}

	if c.Filter.AverageWindow == 0 {
		c.Filter.AverageWindow = def.Filter.AverageWindow
	}
	if c.Filter.HysteresisWidth == 0 {
		c.Filter.HysteresisWidth = def.Filter.HysteresisWidth
	}

	if c.Engine.LockWait == 0 {
		c.Engine.LockWait = def.Engine.LockWait
	}
	if c.Engine.DrainBuffer == 0 {
		c.Engine.DrainBuffer = def.Engine.DrainBuffer
	}

	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.FrameSize == 0 {
		c.Mock.FrameSize = def.Mock.FrameSize
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
}
