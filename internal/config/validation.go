// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/validate"
)

// Validate checks cfg and creates missing data and output directories.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("DataDir", cfg.DataDir, false)
	v.Directory("OutputDir", cfg.OutputDir, false)

	v.NotEmpty("FFmpeg.Bin", cfg.FFmpeg.Bin)
	v.PositiveDuration("FFmpeg.KillGrace", cfg.FFmpeg.KillGrace)
	v.PositiveDuration("FFmpeg.ProbeTimeout", cfg.FFmpeg.ProbeTimeout)
	if cfg.FFmpeg.StallTimeout < 0 {
		v.AddError("FFmpeg.StallTimeout", "duration cannot be negative", cfg.FFmpeg.StallTimeout)
	}

	v.Range("Preview.Width", cfg.Preview.Width, 16, 7680)
	v.Range("Preview.Height", cfg.Preview.Height, 16, 4320)
	v.Even("Preview.Width", cfg.Preview.Width)
	v.Even("Preview.Height", cfg.Preview.Height)
	v.Range("Preview.FPS", cfg.Preview.FPS, 1, 120)
	v.NonNegative("Preview.VideoBitrate", cfg.Preview.VideoBitrate)
	v.PositiveDuration("Preview.MaxDuration", cfg.Preview.MaxDuration)
	v.PositiveDuration("Preview.Debounce", cfg.Preview.Debounce)

	v.OneOf("Export.Quality", cfg.Export.Quality, []string{
		string(compiler.QualityOriginal), string(compiler.Quality1080p),
		string(compiler.Quality720p), string(compiler.Quality480p),
	})
	v.OneOf("Export.Format", cfg.Export.Format, []string{
		string(compiler.FormatMP4), string(compiler.FormatMOV), string(compiler.FormatMKV),
	})

	v.ListenAddr("Server.ListenAddr", cfg.Server.ListenAddr)
	v.NonNegative("Server.RateLimit", cfg.Server.RateLimit)
	v.Positive("Server.MaxSessions", cfg.Server.MaxSessions)
	if cfg.Server.MaxBodyBytes <= 0 {
		v.AddError("Server.MaxBodyBytes", "value must be positive", cfg.Server.MaxBodyBytes)
	}
	v.PositiveDuration("Server.ShutdownTimeout", cfg.Server.ShutdownTimeout)

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("Log.Level", err.Error(), cfg.Log.Level)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.RangeFloat("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
