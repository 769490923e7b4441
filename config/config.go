// Package config provides configuration of the engine. Configuration is a
// YAML file, every value that's not set in the file keeps its default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dudk/remix/graph"
)

// Output devices.
const (
	DevicePortaudio = "portaudio"
	DeviceOto       = "oto"
	DeviceDiscard   = "discard"
)

// Config is the complete engine configuration.
type Config struct {
	Audio    Audio    `yaml:"audio"`
	Source   Source   `yaml:"source"`
	Effects  Effects  `yaml:"effects"`
	Playback Playback `yaml:"playback"`
	Export   Export   `yaml:"export"`
	Logging  Logging  `yaml:"logging"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Audio is the signal of the live pipe.
type Audio struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BufferSize int `yaml:"buffer_size"`
}

// Source contains references of the audio.
type Source struct {
	Default string `yaml:"default"`
	Impulse string `yaml:"impulse"`
}

// Effects contains parameters of the effect nodes and commands.
type Effects struct {
	DelaySeconds    float64 `yaml:"delay_seconds"`
	FilterType      string  `yaml:"filter_type"`
	FilterFrequency float64 `yaml:"filter_frequency"`
	FilterQ         float64 `yaml:"filter_q"`
	GainUp          float64 `yaml:"gain_up"`
	GainDown        float64 `yaml:"gain_down"`
	RelativeGain    bool    `yaml:"relative_gain"`
	PitchSemitones  int     `yaml:"pitch_semitones"`
}

// Playback configures the live output.
type Playback struct {
	Device  string `yaml:"device"`
	Overlap bool   `yaml:"overlap"`
}

// Export configures downloads.
type Export struct {
	Filename        string  `yaml:"filename"`
	Dir             string  `yaml:"dir"`
	DurationSeconds float64 `yaml:"duration_seconds"`
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	ApplyEffects    bool    `yaml:"apply_effects"`
}

// Logging configures the logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics configures prometheus endpoint. Empty address disables it.
type Metrics struct {
	Address string `yaml:"address"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Audio: Audio{
			SampleRate: 44100,
			Channels:   2,
			BufferSize: 512,
		},
		Effects: Effects{
			DelaySeconds:    graph.DefaultDelay,
			FilterType:      string(graph.Highpass),
			FilterFrequency: graph.DefaultFrequency,
			FilterQ:         graph.DefaultQ,
			GainUp:          2.0,
			GainDown:        0.5,
			PitchSemitones:  2,
		},
		Playback: Playback{
			Device: DevicePortaudio,
		},
		Export: Export{
			Filename:        "modified_audio.wav",
			Dir:             ".",
			DurationSeconds: 40,
			SampleRate:      44100,
			Channels:        2,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the configuration file. Values from the file overlay the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks all sections of the configuration.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Effects.Validate(); err != nil {
		return fmt.Errorf("effects: %w", err)
	}
	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Validate audio section.
func (a Audio) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", a.SampleRate)
	}
	if a.Channels < 1 || a.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", a.Channels)
	}
	if a.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be positive, got %d", a.BufferSize)
	}
	return nil
}

// Validate effects section.
func (e Effects) Validate() error {
	if e.DelaySeconds < 0.001 || e.DelaySeconds > 2 {
		return fmt.Errorf("delay_seconds must be between 0.001 and 2, got %v", e.DelaySeconds)
	}
	if _, err := graph.ParseFilterType(e.FilterType); err != nil {
		return err
	}
	if e.FilterFrequency <= 0 {
		return fmt.Errorf("filter_frequency must be positive, got %v", e.FilterFrequency)
	}
	if e.FilterQ <= 0 {
		return fmt.Errorf("filter_q must be positive, got %v", e.FilterQ)
	}
	if e.GainUp < 0 || e.GainDown < 0 {
		return fmt.Errorf("gain values cannot be negative, got %v and %v", e.GainUp, e.GainDown)
	}
	if e.PitchSemitones < 0 || e.PitchSemitones > 24 {
		return fmt.Errorf("pitch_semitones must be between 0 and 24, got %d", e.PitchSemitones)
	}
	return nil
}

// Filter returns filter node parameters.
func (e Effects) Filter() graph.Filter {
	t, _ := graph.ParseFilterType(e.FilterType)
	return graph.Filter{
		Type:      t,
		Frequency: e.FilterFrequency,
		Q:         e.FilterQ,
	}
}

// Validate playback section.
func (p Playback) Validate() error {
	switch p.Device {
	case DevicePortaudio, DeviceOto, DeviceDiscard:
		return nil
	}
	return fmt.Errorf("device must be one of [%s, %s, %s], got %q", DevicePortaudio, DeviceOto, DeviceDiscard, p.Device)
}

// Validate export section.
func (e Export) Validate() error {
	if e.Filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if e.DurationSeconds <= 0 {
		return fmt.Errorf("duration_seconds must be positive, got %v", e.DurationSeconds)
	}
	if e.SampleRate < 8000 || e.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", e.SampleRate)
	}
	if e.Channels < 1 || e.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", e.Channels)
	}
	return nil
}

// Duration returns duration of the download.
func (e Export) Duration() time.Duration {
	return time.Duration(e.DurationSeconds * float64(time.Second))
}

// Validate logging section.
func (l Logging) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
}
