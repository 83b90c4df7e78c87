// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the codegraph configuration from an optional YAML
// file with environment variable overrides.
//
// Resolution order, later wins:
//  1. Built-in defaults
//  2. YAML file (codegraph.yaml in the repository root, or an explicit path)
//  3. CODEGRAPH_* environment variables
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration tree.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Walker  WalkerConfig  `yaml:"walker"`
	Git     GitConfig     `yaml:"git"`
	Watch   WatchConfig   `yaml:"watch"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// StorageConfig controls the BadgerDB store and the repository registry.
type StorageConfig struct {
	// DataDir is the base directory for per-repository databases.
	// Empty means ~/.codegraph/repos.
	DataDir string `yaml:"data_dir"`
	// SyncWrites enables synchronous writes.
	SyncWrites bool `yaml:"sync_writes"`
	// GCInterval is the value log GC cadence. Zero disables GC.
	GCInterval time.Duration `yaml:"gc_interval"`
}

// WalkerConfig controls file discovery.
type WalkerConfig struct {
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// GitConfig controls history mining for the coupling phase.
type GitConfig struct {
	// MaxCommits caps how far back history is read.
	MaxCommits int `yaml:"max_commits"`
}

// WatchConfig controls watch-mode reindexing.
type WatchConfig struct {
	// Debounce is how long to collect file events before reindexing the
	// batch.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{SyncWrites: true, GCInterval: 5 * time.Minute},
		Walker:  WalkerConfig{MaxFileSize: 10 * 1024 * 1024},
		Git:     GitConfig{MaxCommits: 1000},
		Watch:   WatchConfig{Debounce: 500 * time.Millisecond},
	}
}

// Load reads configuration from a YAML file and applies environment
// overrides. A missing file is not an error; an unreadable or malformed one
// is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults plus environment only.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CODEGRAPH_* variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CODEGRAPH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CODEGRAPH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CODEGRAPH_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CODEGRAPH_MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CODEGRAPH_MAX_FILE_SIZE: %w", err)
		}
		cfg.Walker.MaxFileSize = n
	}
	if v := os.Getenv("CODEGRAPH_MAX_COMMITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CODEGRAPH_MAX_COMMITS: %w", err)
		}
		cfg.Git.MaxCommits = n
	}
	if v := os.Getenv("CODEGRAPH_WATCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CODEGRAPH_WATCH_DEBOUNCE: %w", err)
		}
		cfg.Watch.Debounce = d
	}
	return nil
}

func (c Config) validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	if c.Walker.MaxFileSize <= 0 {
		return errors.New("walker.max_file_size: must be positive")
	}
	if c.Git.MaxCommits <= 0 {
		return errors.New("git.max_commits: must be positive")
	}
	if c.Watch.Debounce <= 0 {
		return errors.New("watch.debounce: must be positive")
	}
	return nil
}

// NewLogger builds a slog.Logger for the configured level and format,
// writing to stderr so stdout stays free for command output and the MCP
// stdio transport.
func (c LoggingConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
