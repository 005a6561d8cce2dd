// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/config"
	"github.com/ManuGH/vcompose/internal/executor"
	"github.com/ManuGH/vcompose/internal/graph"
	"github.com/ManuGH/vcompose/internal/history"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/probe"
	"github.com/ManuGH/vcompose/internal/telemetry"
	"github.com/ManuGH/vcompose/internal/timeline"
)

// newProber returns nil when probing is disabled.
func newProber(cfg config.AppConfig) *probe.Prober {
	if !cfg.FFmpeg.Probe {
		return nil
	}
	return probe.New(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.ProbeTimeout)
}

func newCompiler(cfg config.AppConfig) *compiler.Compiler {
	var opts []graph.Option
	if cfg.FFmpeg.FontFile != "" {
		opts = append(opts, graph.WithFontFile(cfg.FFmpeg.FontFile))
	}
	return compiler.New(graph.NewBuilder(opts...), compiler.Config{
		VideoEncoder: cfg.FFmpeg.VideoEncoder,
		AudioEncoder: cfg.FFmpeg.AudioEncoder,
	})
}

// compilerFor probes the sources of tl when a prober is given so clip
// durations and audio presence come from the files themselves.
func compilerFor(ctx context.Context, base *compiler.Compiler, p *probe.Prober, tl timeline.Timeline) (*compiler.Compiler, error) {
	if p == nil {
		return base, nil
	}
	info, err := p.Sources(ctx, tl.SourcePaths())
	if err != nil {
		return nil, fmt.Errorf("probe sources: %w", err)
	}
	return base.WithBuilder(base.Builder().With(graph.WithSourceInfo(info))), nil
}

func newExecutor(cfg config.AppConfig, p *probe.Prober) *executor.Executor {
	opts := []executor.Option{
		executor.WithStallTimeout(cfg.FFmpeg.StallTimeout),
		executor.WithKillGrace(cfg.FFmpeg.KillGrace),
	}
	if p != nil {
		opts = append(opts, executor.WithProber(p))
	}
	return executor.New(cfg.FFmpeg.Bin, opts...)
}

// openHistory returns a nil store when the ledger is disabled.
func openHistory(cfg config.AppConfig) (*history.Store, error) {
	path := cfg.HistoryPath()
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return store, nil
}

func startTelemetry(ctx context.Context, cfg config.AppConfig) (*telemetry.Provider, error) {
	return telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vcompose",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
}

// exportOptions resolves quality and format flags, falling back to the
// configured defaults.
func exportOptions(cfg config.AppConfig, quality, format, output string) (compiler.ExportOptions, error) {
	if quality == "" {
		quality = cfg.Export.Quality
	}
	if format == "" {
		format = cfg.Export.Format
	}
	q, err := compiler.ParseQuality(quality)
	if err != nil {
		return compiler.ExportOptions{}, err
	}
	f, err := compiler.ParseFormat(format)
	if err != nil {
		return compiler.ExportOptions{}, err
	}
	opts := compiler.ExportOptionsForQuality(q, output)
	opts.Format = f
	return opts, nil
}

func closeHistory(store *history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		xlog.L().Warn().Err(err).Msg("close history store")
	}
}
