// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ManuGH/vcompose/internal/executor"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/orchestrator"
	"github.com/ManuGH/vcompose/internal/timeline"
)

type renderOptions struct {
	out     string
	quality string
	format  string
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	o := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <timeline>",
		Short: "Export a timeline",
		Long: `Render a timeline at export quality. Exports run to completion: the first
interrupt is ignored with a warning, a second one terminates vcompose.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, root, o, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.out, "out", "o", "", "output file (default: <output_dir>/export-<id>.<format>)")
	f.StringVar(&o.quality, "quality", "", "quality preset (original, 1080p, 720p, 480p)")
	f.StringVar(&o.format, "format", "", "container (mp4, mov, mkv)")
	return cmd
}

func runRender(cmd *cobra.Command, root *rootOptions, o *renderOptions, path string) error {
	cfg := root.cfg
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tl, err := timeline.LoadFile(path)
	if err != nil {
		return err
	}
	opts, err := exportOptions(cfg, o.quality, o.format, o.out)
	if err != nil {
		return err
	}

	provider, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(context.WithoutCancel(ctx)) }()

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeHistory(store)

	prober := newProber(cfg)
	comp, err := compilerFor(ctx, newCompiler(cfg), prober, tl)
	if err != nil {
		return err
	}

	var orchOpts []orchestrator.Option
	if store != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(store))
	}
	orch, err := orchestrator.New(comp, newExecutor(cfg, prober), orchestrator.Config{
		OutputDir: cfg.OutputDir,
		SessionID: "cli",
		Preview:   cfg.PreviewOptions(),
	}, orchOpts...)
	if err != nil {
		return err
	}
	defer orch.Close()

	results := orch.ExportAsync(ctx, tl, opts)
	var res executor.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		stop()
		xlog.L().Warn().Str(xlog.FieldEvent, "render.interrupt_ignored").
			Msg("export keeps running; interrupt again to abort")
		res = <-results
	}
	return reportResult(cmd, res)
}

func reportResult(cmd *cobra.Command, res executor.Result) error {
	if !res.OK {
		if res.Detail != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Detail)
		}
		return errors.New(res.Message)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n",
		res.File, humanize.IBytes(uint64(max(res.SizeBytes, 0))), res.Duration)
	return err
}
