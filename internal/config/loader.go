// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/vcompose/internal/log"
)

// Loader builds an AppConfig.
type Loader struct {
	configPath string
	envFile    string
	version    string
}

// NewLoader creates a loader. configPath and envFile may be empty; a
// missing envFile is not an error.
func NewLoader(configPath, envFile, version string) *Loader {
	return &Loader{configPath: configPath, envFile: envFile, version: version}
}

// Load applies, in order: defaults, the YAML file, the .env file, the
// process environment. The result is normalized and validated.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()
	logger := log.WithComponent("config")

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
		cfg = fileCfg
		logger.Info().Str("event", "config.file_loaded").Str(log.FieldPath, l.configPath).Msg("loaded configuration file")
	}

	if l.envFile != "" {
		// godotenv never overrides variables already set in the process.
		switch err := godotenv.Load(l.envFile); {
		case err == nil:
			logger.Info().Str("event", "config.env_loaded").Str(log.FieldPath, l.envFile).Msg("loaded env file")
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug().Str(log.FieldPath, l.envFile).Msg("env file not found, skipping")
		default:
			return cfg, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	mergeEnv(&cfg)

	cfg.FFmpeg.FFprobeBin = ResolveFFprobeBin(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.Bin)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(cfg.DataDir, "renders")
	}
	if abs, err := filepath.Abs(cfg.OutputDir); err == nil {
		cfg.OutputDir = abs
	}
	cfg.Export.Quality = strings.ToLower(strings.TrimSpace(cfg.Export.Quality))
	cfg.Export.Format = strings.ToLower(strings.TrimSpace(cfg.Export.Format))
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path on top of the defaults. Unknown fields, multiple
// documents and non-YAML extensions are rejected.
func (l *Loader) loadFile(path string) (AppConfig, error) {
	cfg := Default()
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return cfg, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- the config path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return cfg, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return cfg, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return cfg, errors.New("config file contains multiple documents or trailing content")
	}
	return cfg, nil
}
