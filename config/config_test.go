// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitfsorg/bytestore-go/capacity"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Backend", cfg.Backend, "bolt"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"RentPerByte", cfg.RentPerByte, uint64(6960)},
		{"RentOverhead", cfg.RentOverhead, uint64(128)},
		{"MaxRecordSize", cfg.MaxRecordSize, 10 << 20},
		{"EnvelopeLayout", cfg.EnvelopeLayout, "inline"},
		{"MetricsAddr", cfg.MetricsAddr, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := Config{
		DataDir:        "/tmp/test-bytestore",
		Backend:        "memory",
		LogLevel:       "debug",
		LogFile:        "/tmp/bytestore.log",
		RentPerByte:    3,
		RentOverhead:   0,
		MaxRecordSize:  4096,
		EnvelopeLayout: "separate",
		MetricsAddr:    "127.0.0.1:9100",
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded != original {
		t.Errorf("round trip: got %+v, want %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.yaml")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

func TestSaveConfig_OutputFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# bytestore configuration") {
		t.Error("saved config should start with the header comment")
	}
	for _, key := range []string{"datadir", "backend", "loglevel", "rent_per_byte", "rent_overhead", "max_record_size", "envelope_layout"} {
		if !strings.Contains(content, key+": ") {
			t.Errorf("saved config should contain key %q", key)
		}
	}
	if strings.Contains(content, "metrics_addr") {
		t.Error("empty metrics_addr should be omitted")
	}
}

// ---------------------------------------------------------------------------
// LoadConfig tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("backend: [unterminated\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig malformed: got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `# only two keys
backend: memory
loglevel: debug
futurekey: futurevalue
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "memory")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.RentPerByte != DefaultRentPerByte {
		t.Errorf("RentPerByte = %d, want default %d", cfg.RentPerByte, DefaultRentPerByte)
	}
	if cfg.EnvelopeLayout != "inline" {
		t.Errorf("EnvelopeLayout = %q, want default %q", cfg.EnvelopeLayout, "inline")
	}
}

func TestDefaultConfigMatchesCapacity(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RentPerByte != capacity.DefaultRentPerByte {
		t.Errorf("RentPerByte = %d, want capacity default %d", cfg.RentPerByte, capacity.DefaultRentPerByte)
	}
	if cfg.RentOverhead != capacity.DefaultRentOverhead {
		t.Errorf("RentOverhead = %d, want capacity default %d", cfg.RentOverhead, capacity.DefaultRentOverhead)
	}
	if cfg.MaxRecordSize != capacity.DefaultMaxRecordSize {
		t.Errorf("MaxRecordSize = %d, want capacity default %d", cfg.MaxRecordSize, capacity.DefaultMaxRecordSize)
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_backend",
			modify:  func(c *Config) { c.Backend = "postgres" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "bad_layout",
			modify:  func(c *Config) { c.EnvelopeLayout = "split" },
			wantErr: ErrInvalidEnvelopeLayout,
		},
		{
			name:    "negative_record_size",
			modify:  func(c *Config) { c.MaxRecordSize = -1 },
			wantErr: ErrInvalidRecordSize,
		},
		{
			name:    "bad_metrics_addr",
			modify:  func(c *Config) { c.MetricsAddr = "not-a-valid-addr" },
			wantErr: ErrInvalidListenAddr,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
			}
		})
	}
}

func TestValidateConfig_Layouts(t *testing.T) {
	for _, layout := range []string{"", "inline", "separate"} {
		cfg := DefaultConfig()
		cfg.EnvelopeLayout = layout
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with layout %q: %v", layout, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestPaths(t *testing.T) {
	if got, want := ConfigPath("/srv/bs"), filepath.Join("/srv/bs", "config.yaml"); got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
	if got, want := LedgerPath("/srv/bs"), filepath.Join("/srv/bs", "ledger.db"); got != want {
		t.Errorf("LedgerPath = %q, want %q", got, want)
	}
}

func TestDefaultDataDir_EndsWith_DotBytestore(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".bytestore") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".bytestore")
	}
}
