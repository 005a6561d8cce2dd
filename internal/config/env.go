// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vcompose/internal/log"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "VCOMPOSE_"

// ParseString reads a string from the environment or returns defaultValue.
// It logs where the value came from.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	switch {
	case !exists:
		logger.Debug().Str("key", key).Str("default", defaultValue).Str("source", "default").Msg("using default value")
		return defaultValue
	case value == "":
		logger.Debug().Str("key", key).Str("default", defaultValue).Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	case isSensitive(key):
		logger.Debug().Str("key", key).Str("source", "environment").Bool("sensitive", true).Msg("using environment variable")
	default:
		logger.Debug().Str("key", key).Str("value", value).Str("source", "environment").Msg("using environment variable")
	}
	return value
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password") || strings.Contains(k, "secret")
}

// ParseInt reads an integer, falling back to defaultValue on absence or parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseTyped(key, defaultValue, strconv.Atoi, func(e *zerolog.Event, k string, v int) *zerolog.Event {
		return e.Int(k, v)
	})
}

// ParseInt64 reads a 64-bit integer.
func ParseInt64(key string, defaultValue int64) int64 {
	return parseTyped(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}, func(e *zerolog.Event, k string, v int64) *zerolog.Event {
		return e.Int64(k, v)
	})
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseTyped(key, defaultValue, time.ParseDuration, func(e *zerolog.Event, k string, v time.Duration) *zerolog.Event {
		return e.Dur(k, v)
	})
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseTyped(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, func(e *zerolog.Event, k string, v float64) *zerolog.Event {
		return e.Float64(k, v)
	})
}

// ParseBool accepts true/false, 1/0 and yes/no (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseTyped(key, defaultValue, parseBoolValue, func(e *zerolog.Event, k string, v bool) *zerolog.Event {
		return e.Bool(k, v)
	})
}

func parseBoolValue(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}

// parseTyped is the shared body of the typed env parsers. Every outcome is
// logged with its source; invalid values log a warning and use the default.
func parseTyped[T any](key string, defaultValue T, parse func(string) (T, error), field func(*zerolog.Event, string, T) *zerolog.Event) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok {
		field(logger.Debug().Str("key", key), "default", defaultValue).Str("source", "default").Msg("using default value")
		return defaultValue
	}
	if v == "" {
		field(logger.Debug().Str("key", key), "default", defaultValue).Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	}
	parsed, err := parse(strings.TrimSpace(v))
	if err != nil {
		field(logger.Warn().Str("key", key).Str("value", v), "default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	field(logger.Debug().Str("key", key), "value", parsed).Str("source", "environment").Msg("using environment variable")
	return parsed
}

// mergeEnv overlays VCOMPOSE_* variables onto cfg.
func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(EnvPrefix+"DATA_DIR", cfg.DataDir)
	cfg.OutputDir = ParseString(EnvPrefix+"OUTPUT_DIR", cfg.OutputDir)

	cfg.FFmpeg.Bin = ParseString(EnvPrefix+"FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = ParseString(EnvPrefix+"FFPROBE_BIN", cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.FontFile = ParseString(EnvPrefix+"FONT_FILE", cfg.FFmpeg.FontFile)
	cfg.FFmpeg.VideoEncoder = ParseString(EnvPrefix+"VIDEO_ENCODER", cfg.FFmpeg.VideoEncoder)
	cfg.FFmpeg.AudioEncoder = ParseString(EnvPrefix+"AUDIO_ENCODER", cfg.FFmpeg.AudioEncoder)
	cfg.FFmpeg.StallTimeout = ParseDuration(EnvPrefix+"STALL_TIMEOUT", cfg.FFmpeg.StallTimeout)
	cfg.FFmpeg.KillGrace = ParseDuration(EnvPrefix+"KILL_GRACE", cfg.FFmpeg.KillGrace)
	cfg.FFmpeg.ProbeTimeout = ParseDuration(EnvPrefix+"PROBE_TIMEOUT", cfg.FFmpeg.ProbeTimeout)
	cfg.FFmpeg.Probe = ParseBool(EnvPrefix+"PROBE", cfg.FFmpeg.Probe)

	cfg.Preview.Width = ParseInt(EnvPrefix+"PREVIEW_WIDTH", cfg.Preview.Width)
	cfg.Preview.Height = ParseInt(EnvPrefix+"PREVIEW_HEIGHT", cfg.Preview.Height)
	cfg.Preview.FPS = ParseInt(EnvPrefix+"PREVIEW_FPS", cfg.Preview.FPS)
	cfg.Preview.VideoBitrate = ParseInt(EnvPrefix+"PREVIEW_BITRATE", cfg.Preview.VideoBitrate)
	cfg.Preview.MaxDuration = ParseDuration(EnvPrefix+"PREVIEW_MAX_DURATION", cfg.Preview.MaxDuration)
	cfg.Preview.Debounce = ParseDuration(EnvPrefix+"PREVIEW_DEBOUNCE", cfg.Preview.Debounce)

	cfg.Export.Quality = ParseString(EnvPrefix+"EXPORT_QUALITY", cfg.Export.Quality)
	cfg.Export.Format = ParseString(EnvPrefix+"EXPORT_FORMAT", cfg.Export.Format)

	cfg.Server.ListenAddr = ParseString(EnvPrefix+"LISTEN", cfg.Server.ListenAddr)
	cfg.Server.RateLimit = ParseInt(EnvPrefix+"RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.MaxBodyBytes = ParseInt64(EnvPrefix+"MAX_BODY_BYTES", cfg.Server.MaxBodyBytes)
	cfg.Server.ShutdownTimeout = ParseDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.MaxSessions = ParseInt(EnvPrefix+"MAX_SESSIONS", cfg.Server.MaxSessions)
	cfg.Server.MediaRoot = ParseString(EnvPrefix+"MEDIA_ROOT", cfg.Server.MediaRoot)

	cfg.Log.Level = ParseString(EnvPrefix+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Console = ParseBool(EnvPrefix+"LOG_CONSOLE", cfg.Log.Console)

	cfg.Telemetry.Enabled = ParseBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvPrefix+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvPrefix+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvPrefix+"TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)

	cfg.History.Path = ParseString(EnvPrefix+"HISTORY_PATH", cfg.History.Path)
}
