// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vcompose/internal/api"
	"github.com/ManuGH/vcompose/internal/daemon"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/version"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve editing sessions over HTTP. Clients create a session, upload
timelines (each upload schedules a debounced preview) and request exports.
Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}
			return runServe(cmd.Context(), root, cfg.Server.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func runServe(parent context.Context, root *rootOptions, listen string) error {
	cfg := root.cfg
	logger := xlog.WithComponent("serve")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return err
	}

	prober := newProber(cfg)
	deps := api.Deps{
		Compiler: newCompiler(cfg),
		Runner:   newExecutor(cfg, prober),
	}
	if prober != nil {
		deps.Prober = prober
	}
	if store != nil {
		deps.History = store
	}
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = "vcompose"
	}
	srv, err := api.New(api.Config{
		OutputDir:      cfg.OutputDir,
		MediaRoot:      cfg.MediaRoot(),
		Preview:        cfg.PreviewOptions(),
		Debounce:       cfg.Preview.Debounce,
		MaxSessions:    cfg.Server.MaxSessions,
		RateLimit:      cfg.Server.RateLimit,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TracingService: tracing,
		Version:        version.Version,
	}, deps)
	if err != nil {
		closeHistory(store)
		_ = provider.Shutdown(ctx)
		return err
	}

	app, err := daemon.NewApp(daemon.Config{
		ListenAddr:      listen,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, srv.Handler())
	if err != nil {
		return err
	}
	// Hooks run last-registered first: sessions, then history, then traces.
	app.RegisterShutdownHook("telemetry", provider.Shutdown)
	app.RegisterShutdownHook("history", func(context.Context) error {
		if store == nil {
			return nil
		}
		return store.Close()
	})
	app.RegisterShutdownHook("sessions", srv.Shutdown)

	logger.Info().
		Str(xlog.FieldEvent, "startup").
		Str("version", version.String()).
		Str("addr", listen).
		Str("output_dir", cfg.OutputDir).
		Str("history", cfg.HistoryPath()).
		Bool("probe", prober != nil).
		Msg("starting vcompose")

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str(xlog.FieldEvent, "serve.failed").Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server exiting")
	return nil
}
