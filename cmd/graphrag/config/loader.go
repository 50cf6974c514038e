// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRAPHRAG_"

// LoadOptions controls Load.
type LoadOptions struct {
	// Path of the YAML file. Empty uses DefaultPath.
	Path string

	// EnvFile is a dotenv file read before overrides are applied. A missing
	// file is ignored. Empty means ".env".
	EnvFile string

	// Lookup reads environment variables. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)

	// Notice receives the first-run message. Defaults to os.Stderr.
	Notice io.Writer
}

// DefaultPath returns ~/.graphrag/graphrag.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".graphrag", "graphrag.yaml"), nil
}

// Load reads the config file, creating it with defaults on first run, then
// applies .env and GRAPHRAG_* overrides and validates the result.
func Load(opts LoadOptions) (GraphRAGConfig, error) {
	path := opts.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return GraphRAGConfig{}, err
		}
		path = p
	}
	notice := opts.Notice
	if notice == nil {
		notice = os.Stderr
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(notice, "First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return GraphRAGConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return GraphRAGConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return GraphRAGConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	lookup := opts.Lookup
	if lookup == nil {
		envFile := opts.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return GraphRAGConfig{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return GraphRAGConfig{}, err
	}

	if err := Validate(cfg); err != nil {
		return GraphRAGConfig{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg GraphRAGConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s fails %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides cfg from GRAPHRAG_* variables.
func applyEnv(cfg *GraphRAGConfig, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("BASE_URL", &cfg.Backend.BaseURL)
	str("RETRIEVAL_MODE", &cfg.Query.Mode)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_DIR", &cfg.Logging.Dir)
	str("TRACE_EXPORTER", &cfg.Tracing.Exporter)
	str("TASK_DIR", &cfg.Tasks.Dir)

	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Backend.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		cfg.Backend.RateLimit = f
	}
	if v, ok := lookup(EnvPrefix + "LOG_JSON"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_JSON: %w", EnvPrefix, err)
		}
		cfg.Logging.JSON = b
	}
	return nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExpandPath resolves a leading ~ to the home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
