// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Search SearchConfig `toml:"search"`
	Paths  PathsConfig  `toml:"paths"`
}

// SearchConfig maps search-related settings. Pointer fields distinguish
// "unset" from an explicit zero so flags can take precedence.
type SearchConfig struct {
	PopulationSize *int     `toml:"population"`
	EliteCount     *int     `toml:"elite"`
	Generations    *int     `toml:"generations"`
	Workers        *int     `toml:"workers"`
	Seed           *int64   `toml:"seed"`
	MutationRate   *float64 `toml:"mutation-rate"`
	MutationSwaps  *int     `toml:"mutation-swaps"`
	Selector       *string  `toml:"selector"`
	AnnealSteps    *int     `toml:"anneal-steps"`
	InitialTemp    *float64 `toml:"initial-temp"`
	TempDecay      *float64 `toml:"temp-decay"`
	TempFloor      *float64 `toml:"temp-floor"`
	BigramWindowMS *int     `toml:"bigram-window-ms"`
}

// PathsConfig maps file locations.
type PathsConfig struct {
	Keymap *string `toml:"keymap"`
	Log    *string `toml:"log"`
	Output *string `toml:"output"`
	Store  *string `toml:"store"`
	DBPath *string `toml:"db-path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
