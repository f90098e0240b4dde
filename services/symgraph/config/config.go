// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the project configuration file .cursor-crawl.yaml.
//
// Values in the file are applied over Default() and the result is checked
// with struct-tag validation. A missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/spginebaugh/cursor-crawl/pkg/logging"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".cursor-crawl.yaml"

var (
	// ErrInvalidConfig indicates the file parsed but failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrParseConfig indicates the file is not valid YAML for Config.
	ErrParseConfig = errors.New("cannot parse configuration")
)

// Config is the crawl configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	FactCache FactCacheConfig `yaml:"fact_cache"`
	Watch     WatchConfig     `yaml:"watch"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// IndexConfig controls extraction and resolution.
type IndexConfig struct {
	// Path is the index file, relative to the project root.
	Path string `yaml:"path" validate:"required"`

	MaxFiles           int   `yaml:"max_files" validate:"gte=1,lte=1000000"`
	MaxFileSize        int64 `yaml:"max_file_size" validate:"gte=1024"`
	Workers            int   `yaml:"workers" validate:"gte=1,lte=256"`
	ContextLines       int   `yaml:"context_lines" validate:"gte=0,lte=20"`
	PruneModuleSymbols bool  `yaml:"prune_module_symbols"`
}

// DiscoveryConfig controls which files are indexed.
type DiscoveryConfig struct {
	UseGit bool     `yaml:"use_git"`
	Ignore []string `yaml:"ignore,omitempty" validate:"dive,required"`
}

// FactCacheConfig controls the persistent per-file fact cache.
type FactCacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is the Badger directory, relative to the project root.
	Dir string        `yaml:"dir" validate:"required_if=Enabled true"`
	TTL time.Duration `yaml:"ttl" validate:"gte=0s"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=10ms,lte=1m"`
}

// ServerConfig controls the HTTP query API.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level logging.Level `yaml:"level"`
	JSON  bool          `yaml:"json"`
	Dir   string        `yaml:"dir"`
}

// TelemetryConfig selects exporters for traces and metrics.
type TelemetryConfig struct {
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Traces otlp"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Index: IndexConfig{
			Path:         ".cursor-crawl/symbol-index.json",
			MaxFiles:     10000,
			MaxFileSize:  1 << 20,
			Workers:      4,
			ContextLines: 2,
		},
		Discovery: DiscoveryConfig{
			UseGit: true,
		},
		FactCache: FactCacheConfig{
			Enabled: true,
			Dir:     ".cursor-crawl/facts",
			TTL:     30 * 24 * time.Hour,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7420",
		},
		Logging: LoggingConfig{
			Level: logging.LevelInfo,
		},
		Telemetry: TelemetryConfig{
			Traces:  "none",
			Metrics: "prometheus",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration's struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads FileName from root over Default. A missing file yields the
// defaults.
func Load(root string) (Config, error) {
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile reads the configuration at path over Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("%w: %s: %v", ErrParseConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Write saves cfg to path as YAML, creating parent directories.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(fileForm(cfg))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// fileForm renders durations as strings, which is how Load reads them.
func fileForm(cfg Config) map[string]any {
	return map[string]any{
		"index":     cfg.Index,
		"discovery": cfg.Discovery,
		"fact_cache": map[string]any{
			"enabled": cfg.FactCache.Enabled,
			"dir":     cfg.FactCache.Dir,
			"ttl":     cfg.FactCache.TTL.String(),
		},
		"watch": map[string]any{
			"debounce": cfg.Watch.Debounce.String(),
		},
		"server":    cfg.Server,
		"logging":   cfg.Logging,
		"telemetry": cfg.Telemetry,
	}
}
