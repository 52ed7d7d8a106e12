// Package prefs holds the user-tunable preference model for the motion
// pipeline: sensitivity, per-axis inversion, axis-pair flips and the
// view-axis mask. Preferences are owned by the host; the core only ever
// reads them, so a gesture picks up edits made mid-session.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Axis-pair indices for AxisConfig.Flip, applied in this order.
const (
	PairXY = iota
	PairXZ
	PairYZ
)

// AxisConfig tunes one transform category (translation or rotation).
type AxisConfig struct {
	// Sensitivity multiplies every device axis before anything else.
	Sensitivity float64 `toml:"sensitivity"`
	// Invert negates individual axes (x, y, z).
	Invert [3]bool `toml:"invert"`
	// Flip swaps axis pairs (xy, xz, yz), applied sequentially in that
	// order: a component already swapped by an earlier pair is swapped
	// again if a later enabled pair contains it.
	Flip [3]bool `toml:"flip"`
}

// Config is the full preference set.
type Config struct {
	Translate AxisConfig `toml:"translate"`
	Rotate    AxisConfig `toml:"rotate"`
	// ViewAxes selects which axes of the active view orientation drive
	// view alignment; a disabled axis falls back to the global axis.
	ViewAxes [3]bool `toml:"use_view_axis"`
}

// Default returns the stock preference set: conservative sensitivities
// and fully view-relative axes.
func Default() Config {
	return Config{
		Translate: AxisConfig{Sensitivity: 0.005},
		Rotate:    AxisConfig{Sensitivity: 0.5},
		ViewAxes:  [3]bool{true, true, true},
	}
}

// Load reads the preference file at path. A missing file is not an
// error: the defaults are written there and returned, so first runs
// leave an editable file behind.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("prefs: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the preference set as TOML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prefs: create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prefs: write %s: %w", path, err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
