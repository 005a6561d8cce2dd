// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads vcompose configuration from defaults, a strict YAML
// file, an optional .env file and VCOMPOSE_* environment variables.
package config

import (
	"path/filepath"
	"time"

	"github.com/ManuGH/vcompose/internal/compiler"
)

// AppConfig is the effective configuration.
type AppConfig struct {
	DataDir   string          `yaml:"data_dir"`
	OutputDir string          `yaml:"output_dir"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Preview   PreviewConfig   `yaml:"preview"`
	Export    ExportConfig    `yaml:"export"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	History   HistoryConfig   `yaml:"history"`

	// Version is the binary version, set by the loader.
	Version string `yaml:"-"`
}

// FFmpegConfig locates and supervises the media tools.
type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	FFprobeBin   string        `yaml:"ffprobe_bin"`
	FontFile     string        `yaml:"font_file"`
	VideoEncoder string        `yaml:"video_encoder"`
	AudioEncoder string        `yaml:"audio_encoder"`
	StallTimeout time.Duration `yaml:"stall_timeout"`
	KillGrace    time.Duration `yaml:"kill_grace"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// Probe enables ffprobe of sources before builds and of outputs after.
	Probe bool `yaml:"probe"`
}

// PreviewConfig shapes interactive previews.
type PreviewConfig struct {
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	FPS          int           `yaml:"fps"`
	VideoBitrate int           `yaml:"video_bitrate"`
	MaxDuration  time.Duration `yaml:"max_duration"`
	Debounce     time.Duration `yaml:"debounce"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	Quality string `yaml:"quality"`
	Format  string `yaml:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	RateLimit       int           `yaml:"rate_limit"` // requests per minute per client
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxSessions     int           `yaml:"max_sessions"`
	// MediaRoot confines the sources API clients may reference. It defaults
	// to <data_dir>/media.
	MediaRoot string `yaml:"media_root"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// HistoryConfig configures the export ledger.
type HistoryConfig struct {
	// Path defaults to <data_dir>/history.sqlite. "off" disables the ledger.
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	p := compiler.DefaultPreviewOptions("")
	return AppConfig{
		DataDir:   "data",
		OutputDir: "",
		FFmpeg: FFmpegConfig{
			Bin:          "ffmpeg",
			VideoEncoder: "libx264",
			AudioEncoder: "aac",
			StallTimeout: 60 * time.Second,
			KillGrace:    2 * time.Second,
			ProbeTimeout: 15 * time.Second,
			Probe:        true,
		},
		Preview: PreviewConfig{
			Width:        p.Width,
			Height:       p.Height,
			FPS:          p.FPS,
			VideoBitrate: p.VideoBitrate,
			MaxDuration:  p.MaxDuration,
			Debounce:     100 * time.Millisecond,
		},
		Export: ExportConfig{
			Quality: string(compiler.QualityOriginal),
			Format:  string(compiler.FormatMP4),
		},
		Server: ServerConfig{
			ListenAddr:      ":8088",
			RateLimit:       240,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 15 * time.Second,
			MaxSessions:     32,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}

// PreviewOptions converts the preview section into compiler options.
func (c AppConfig) PreviewOptions() compiler.PreviewOptions {
	return compiler.PreviewOptions{
		Width:        c.Preview.Width,
		Height:       c.Preview.Height,
		FPS:          c.Preview.FPS,
		MaxDuration:  c.Preview.MaxDuration,
		VideoBitrate: c.Preview.VideoBitrate,
	}
}

// MediaRoot returns the directory API timelines may read sources from.
func (c AppConfig) MediaRoot() string {
	if c.Server.MediaRoot != "" {
		return c.Server.MediaRoot
	}
	return filepath.Join(c.DataDir, "media")
}

// HistoryPath returns the ledger location, or "" when disabled.
func (c AppConfig) HistoryPath() string {
	switch c.History.Path {
	case "off":
		return ""
	case "":
		return filepath.Join(c.DataDir, "history.sqlite")
	default:
		return c.History.Path
	}
}
