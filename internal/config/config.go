// Package config loads fragdb settings from a YAML file.
//
// Every field has a default, so a missing file is not an error when the
// caller asks for the default path. Command-line flags are applied on top by
// the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fragdb/internal/hlc"
	"github.com/roach88/fragdb/internal/store"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "fragdb.yaml"

// Config holds the settings shared by every command.
type Config struct {
	// DataDir is the directory holding <store>.db files.
	DataDir string `yaml:"data_dir"`

	// Store is the name of the store to open.
	Store string `yaml:"store"`

	// NodeID identifies this replica in the timestamps it issues.
	// Empty means a fresh id is generated per process.
	NodeID string `yaml:"node_id,omitempty"`

	// BusyTimeoutMS is passed to PRAGMA busy_timeout.
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`

	// Synchronous is passed to PRAGMA synchronous.
	Synchronous string `yaml:"synchronous"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:       ".",
		Store:         "default",
		BusyTimeoutMS: 5000,
		Synchronous:   "NORMAL",
		LogLevel:      "info",
	}
}

// Load reads path over the defaults.
//
// If optional is true and the file does not exist, the defaults are returned.
// Unknown keys are rejected so typos surface instead of being ignored.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if err := store.ValidateName(c.Store); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.NodeID != "" {
		if err := hlc.ValidateNodeID(c.NodeID); err != nil {
			return fmt.Errorf("node_id: %w", err)
		}
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy_timeout_ms must not be negative, got %d", c.BusyTimeoutMS)
	}
	switch strings.ToUpper(c.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("synchronous must be OFF, NORMAL, FULL or EXTRA, got %q", c.Synchronous)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level. Call Validate first.
func (c Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// StoreOptions converts the settings into store open options.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithBusyTimeout(c.BusyTimeoutMS),
		store.WithSynchronous(c.Synchronous),
	}
}

// ParseLevel maps a log_level value to an slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}

// Write stores cfg at path in YAML. It refuses to replace an existing file.
func Write(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}
