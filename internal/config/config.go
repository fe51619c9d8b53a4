// Package config loads stereo matching presets from YAML files. A preset
// bundles the engine parameters so a pipeline can be reproduced from a
// single file instead of a long flag list.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset holds the tunable parameters of one matching configuration.
// Zero values are replaced by defaults in Load; image dimensions are not
// part of a preset, they come from the input pair.
type Preset struct {
	MaxDisparity    int     `yaml:"maxDisparity"`
	P1              int     `yaml:"p1"`
	P2              int     `yaml:"p2"`
	NumPaths        int     `yaml:"numPaths"`
	UniquenessRatio int     `yaml:"uniquenessRatio"`
	Subpixel        *bool   `yaml:"subpixel"`
	Cost            string  `yaml:"cost"`
	Scale           float64 `yaml:"scale"`
}

// Default returns the preset used when no file is given.
func Default() Preset {
	subpixel := true
	return Preset{
		MaxDisparity:    64,
		P1:              10,
		P2:              120,
		NumPaths:        8,
		UniquenessRatio: 10,
		Subpixel:        &subpixel,
		Cost:            "census",
		Scale:           1,
	}
}

// Load reads a preset from a YAML file. Unknown keys are rejected so a
// typo in a preset file fails loudly instead of silently falling back to
// a default. Fields left out of the file keep their default values.
func Load(path string) (Preset, error) {
	preset := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("failed to read preset file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&preset); err != nil {
		return Preset{}, fmt.Errorf("failed to parse preset file %s: %w", path, err)
	}

	if err := preset.Validate(); err != nil {
		return Preset{}, fmt.Errorf("invalid preset %s: %w", path, err)
	}
	return preset, nil
}

// Validate checks preset values against engine constraints.
func (p Preset) Validate() error {
	if p.MaxDisparity <= 0 || p.MaxDisparity > 256 {
		return fmt.Errorf("maxDisparity must be in (0, 256], got %d", p.MaxDisparity)
	}
	if p.P1 <= 0 {
		return fmt.Errorf("p1 must be positive, got %d", p.P1)
	}
	if p.P2 <= p.P1 {
		return fmt.Errorf("p2 must exceed p1, got p1=%d p2=%d", p.P1, p.P2)
	}
	if p.P2 > 7936 {
		return fmt.Errorf("p2 must be at most 7936, got %d", p.P2)
	}
	if p.NumPaths != 4 && p.NumPaths != 8 {
		return fmt.Errorf("numPaths must be 4 or 8, got %d", p.NumPaths)
	}
	if p.UniquenessRatio < 0 || p.UniquenessRatio >= 100 {
		return fmt.Errorf("uniquenessRatio must be in [0, 100), got %d", p.UniquenessRatio)
	}
	switch p.Cost {
	case "", "census", "absdiff":
	default:
		return fmt.Errorf("cost must be census or absdiff, got %q", p.Cost)
	}
	if p.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", p.Scale)
	}
	return nil
}

// SubpixelEnabled resolves the optional subpixel flag, defaulting to on.
func (p Preset) SubpixelEnabled() bool {
	if p.Subpixel == nil {
		return true
	}
	return *p.Subpixel
}
