// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vcompose/internal/executor"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/orchestrator"
	"github.com/ManuGH/vcompose/internal/timeline"
	"github.com/ManuGH/vcompose/internal/watch"
)

const previewPollInterval = 50 * time.Millisecond

type previewOptions struct {
	watch  bool
	outDir string
}

func newPreviewCmd(root *rootOptions) *cobra.Command {
	o := &previewOptions{}
	cmd := &cobra.Command{
		Use:   "preview <timeline>",
		Short: "Render a low-resolution preview",
		Long: `Render a fast preview of a timeline. With --watch the timeline file is
watched and a new preview is rendered after every save; a save during a
running render cancels it. The newest preview is linked as latest.mp4 in the
output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, root, o, args[0])
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&o.watch, "watch", "w", false, "re-render on every save until interrupted")
	f.StringVar(&o.outDir, "out-dir", "", "directory for preview files (default: <output_dir>/previews)")
	return cmd
}

func runPreview(cmd *cobra.Command, root *rootOptions, o *previewOptions, path string) error {
	cfg := root.cfg
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tl, err := timeline.LoadFile(path)
	if err != nil {
		return err
	}

	provider, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(context.WithoutCancel(ctx)) }()

	outDir := o.outDir
	if outDir == "" {
		outDir = filepath.Join(cfg.OutputDir, "previews")
	}
	prober := newProber(cfg)
	base := newCompiler(cfg)
	comp, err := compilerFor(ctx, base, prober, tl)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	orch, err := orchestrator.New(comp, newExecutor(cfg, prober), orchestrator.Config{
		OutputDir: outDir,
		SessionID: "cli",
		Debounce:  cfg.Preview.Debounce,
		Preview:   cfg.PreviewOptions(),
	}, orchestrator.OnPreview(func(res executor.Result) {
		if o.watch {
			fmt.Fprintf(out, "preview ready: %s\n", res.File)
		}
	}))
	if err != nil {
		return err
	}
	defer orch.Close()

	gen, err := orch.SchedulePreview(tl)
	if err != nil {
		return err
	}
	if !o.watch {
		res, err := waitPreview(ctx, orch, gen)
		if err != nil {
			return err
		}
		return reportResult(cmd, res)
	}

	return watch.Timeline(ctx, path, func(next timeline.Timeline) {
		if c, err := compilerFor(ctx, base, prober, next); err != nil {
			xlog.L().Warn().Err(err).Str(xlog.FieldEvent, "preview.probe_failed").Msg("keeping previous source metadata")
		} else {
			orch.SetCompiler(c)
		}
		if _, err := orch.SchedulePreview(next); err != nil {
			xlog.L().Warn().Err(err).Msg("schedule preview")
		}
	})
}

// waitPreview polls until the build of generation gen has an outcome.
func waitPreview(ctx context.Context, orch *orchestrator.Orchestrator, gen uint64) (executor.Result, error) {
	ticker := time.NewTicker(previewPollInterval)
	defer ticker.Stop()
	for {
		st := orch.Status()
		if last := st.Preview.Last; last != nil && last.Generation >= gen {
			return last.Result, nil
		}
		select {
		case <-ctx.Done():
			return executor.Result{}, errors.New("preview interrupted")
		case <-ticker.C:
		}
	}
}
