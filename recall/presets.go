package recall

import (
	"fmt"
	"os"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"gopkg.in/yaml.v2"
)

// Presets is the content of a preset file: a named list of recall
// templates.
//
//	name: metering
//	recalls:
//	  - {name: peak, kind: peak, level: channel-run}
type Presets struct {
	Name    string             `yaml:"name"`
	Recalls []gsq.RecallConfig `yaml:"recalls"`
}

// ParsePresets decodes a preset file. Unknown fields are an error.
func ParsePresets(data []byte) (Presets, error) {
	var p Presets
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return Presets{}, fmt.Errorf("cannot parse presets: %w", err)
	}
	return p, nil
}

// LoadPresets reads and parses the preset file at path.
func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Presets{}, fmt.Errorf("cannot read presets: %w", err)
	}
	return ParsePresets(data)
}

// Templates builds the templates of all presets.
func (p Presets) Templates() ([]*gsq.Recall, error) {
	return NewAll(p.Recalls)
}
