package gsequencer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Config describes a track and what to run on it. It is usually read
	// from a YAML file:
	//
	//	name: mixer
	//	audio-channels: 2
	//	output-pads: 1
	//	input-pads: 4
	//	flags: [output-has-recycling, input-has-recycling, async]
	//	scopes: [playback]
	//	recalls:
	//	  - {name: peak, kind: peak, level: channel-run}
	Config struct {
		Name          string   `yaml:"name"`
		AudioChannels int      `yaml:"audio-channels"`
		OutputPads    int      `yaml:"output-pads"`
		InputPads     int      `yaml:"input-pads"`
		Flags         []string `yaml:"flags,flow,omitempty"`
		Samplerate    int      `yaml:"samplerate,omitempty"`
		BufferSize    int      `yaml:"buffer-size,omitempty"`
		Format        string   `yaml:"format,omitempty"`

		// Scopes lists the sound scopes to start. Empty means playback.
		Scopes []string `yaml:"scopes,flow,omitempty"`
		// Ticks is the number of play pulses to run before stopping.
		Ticks int `yaml:"ticks,omitempty"`

		Recalls []RecallConfig `yaml:"recalls,omitempty"`
		// Presets are paths of additional recall preset files.
		Presets []string `yaml:"presets,omitempty"`
	}

	// RecallConfig describes one recall template.
	RecallConfig struct {
		Name       string             `yaml:"name"`
		Kind       string             `yaml:"kind"`
		Level      string             `yaml:"level"`
		Scopes     []string           `yaml:"scopes,flow,omitempty"`
		Line       *int               `yaml:"line,omitempty"`
		Persistent bool               `yaml:"persistent,omitempty"`
		Params     map[string]float64 `yaml:"params,flow,omitempty"`
	}
)

// ParseConfig decodes a YAML config. Unknown fields are an error. Zero
// fields get their defaults.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	c.ApplyDefaults()
	return &c, nil
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return ParseConfig(data)
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "track"
	}
	if c.Samplerate <= 0 {
		c.Samplerate = DefaultSamplerate
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Format == "" {
		c.Format = DefaultFormat.String()
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{ScopePlayback.String()}
	}
}

// ParseFormat converts a format name as returned by Format.String.
func ParseFormat(name string) (Format, error) {
	for _, f := range []Format{FormatFloat32, FormatSigned16} {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown sample format %q", name)
}

// Marshal encodes the config back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("cannot encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("cannot encode config: %w", err)
	}
	return buf.Bytes(), nil
}
