// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the byte store's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/bitfsorg/bytestore-go/capacity"
)

// Ledger backends.
const (
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Default pricing and limits, taken from the capacity package.
const (
	DefaultRentPerByte   = capacity.DefaultRentPerByte
	DefaultRentOverhead  = capacity.DefaultRentOverhead
	DefaultMaxRecordSize = capacity.DefaultMaxRecordSize
)

const (
	configFile = "config.yaml"
	ledgerFile = "ledger.db"
	configHead = "# bytestore configuration\n"
)

// Config holds the runtime settings of a store.
type Config struct {
	DataDir        string `yaml:"datadir"`
	Backend        string `yaml:"backend"`
	LogLevel       string `yaml:"loglevel"`
	LogFile        string `yaml:"logfile,omitempty"`
	RentPerByte    uint64 `yaml:"rent_per_byte"`
	RentOverhead   uint64 `yaml:"rent_overhead"`
	MaxRecordSize  int    `yaml:"max_record_size"`
	EnvelopeLayout string `yaml:"envelope_layout"`
	MetricsAddr    string `yaml:"metrics_addr,omitempty"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		Backend:        BackendBolt,
		LogLevel:       "info",
		RentPerByte:    DefaultRentPerByte,
		RentOverhead:   DefaultRentOverhead,
		MaxRecordSize:  DefaultMaxRecordSize,
		EnvelopeLayout: "inline",
	}
}

// DefaultDataDir returns ~/.bytestore, or .bytestore when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bytestore"
	}
	return filepath.Join(home, ".bytestore")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFile)
}

// LedgerPath returns the bolt ledger path inside dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, ledgerFile)
}

// LoadConfig reads the YAML file at path over DefaultConfig. Keys absent
// from the file keep their defaults and unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	out := append([]byte(configHead), data...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
