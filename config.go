package pal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one database. It is consumed as a read-only snapshot
// when a Session is constructed; switching databases means constructing a
// new Session around a new Config.
type Config struct {
	// Database is the logical database name.
	Database string `yaml:"database"`
	// Version is the schema version.
	Version int `yaml:"version"`
	// Storage is the on-disk location ("internal" or a directory path).
	Storage string `yaml:"storage,omitempty"`
	// Cases is the identifier casing policy: lower, upper or keep.
	Cases string `yaml:"cases,omitempty"`
	// Models lists the mapped model type names.
	Models []string `yaml:"models"`
	// Key is the passphrase for field encryption. Empty disables the
	// reversible cipher.
	Key string `yaml:"key,omitempty"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pal: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("pal: parsing config: %w", err)
	}
	if cfg.Database == "" {
		return Config{}, fmt.Errorf("pal: config missing database name")
	}
	if cfg.Version < 1 {
		cfg.Version = 1
	}
	return cfg, nil
}

// Casing returns the parsed identifier casing policy.
func (c Config) Casing() Casing {
	return ParseCasing(c.Cases)
}
