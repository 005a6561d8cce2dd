// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package executor runs compiled ffmpeg commands and reports a typed Result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vcompose/internal/compiler"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/metrics"
	"github.com/ManuGH/vcompose/internal/probe"
	"github.com/ManuGH/vcompose/internal/procgroup"
)

const (
	defaultStallTimeout = 60 * time.Second
	defaultStartupGrace = 10 * time.Second
	defaultKillGrace    = 2 * time.Second
	stderrTailLines     = 40
)

// Executor runs ffmpeg.
type Executor struct {
	bin          string
	prober       *probe.Prober
	stallTimeout time.Duration
	startupGrace time.Duration
	killGrace    time.Duration
	logger       zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithProber measures output durations with ffprobe instead of trusting
// the compiled expectation.
func WithProber(p *probe.Prober) Option {
	return func(e *Executor) { e.prober = p }
}

// WithStallTimeout kills ffmpeg when no progress arrives for d.
// d <= 0 disables the watchdog.
func WithStallTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stallTimeout = d }
}

// WithStartupGrace suppresses stall detection for the first d of a run.
func WithStartupGrace(d time.Duration) Option {
	return func(e *Executor) { e.startupGrace = d }
}

// WithKillGrace sets the delay between SIGTERM and SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(e *Executor) { e.killGrace = d }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an Executor for the given ffmpeg binary.
func New(bin string, opts ...Option) *Executor {
	if bin == "" {
		bin = "ffmpeg"
	}
	e := &Executor{
		bin:          bin,
		stallTimeout: defaultStallTimeout,
		startupGrace: defaultStartupGrace,
		killGrace:    defaultKillGrace,
		logger:       xlog.WithComponent("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bin returns the ffmpeg binary path.
func (e *Executor) Bin() string { return e.bin }

// Run executes cmd. It never returns an error; every outcome is a Result.
// A failed run removes the partial output only when ffmpeg was started and
// the output path did not exist before the run.
func (e *Executor) Run(ctx context.Context, cmd *compiler.Command) (res Result) {
	start := time.Now()
	removePartial := false
	target := "unknown"
	if cmd != nil {
		target = string(cmd.Target)
	}
	logger := xlog.WithContext(ctx, e.logger).With().Str(xlog.FieldTarget, target).Logger()

	defer func() {
		if !res.OK && removePartial {
			_ = os.Remove(cmd.Output)
		}
		metrics.ObserveRender(target, res.Outcome(), time.Since(start), res.SizeBytes)
		ev := logger.Info()
		if !res.OK {
			ev = logger.Warn().Str("kind", res.Kind.String()).Str("detail", res.Detail)
		}
		ev.Str(xlog.FieldEvent, "render.finished").
			Bool("ok", res.OK).
			Int64(xlog.FieldDurationMs, time.Since(start).Milliseconds()).
			Msg(res.Message)
	}()

	if cmd == nil || cmd.Output == "" || len(cmd.Args) == 0 {
		return Failure(KindConfiguration, "no command to run", "")
	}
	if err := ctx.Err(); err != nil {
		return Failure(KindCanceled, "render canceled before start", err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(cmd.Output), 0o755); err != nil {
		return Failure(KindIO, "create output directory", err.Error())
	}

	_, statErr := os.Lstat(cmd.Output)
	preexisting := !errors.Is(statErr, fs.ErrNotExist)

	args := make([]string, 0, len(cmd.Args)+3)
	args = append(args, "-progress", "pipe:1", "-nostats")
	args = append(args, cmd.Args...)

	proc := exec.Command(e.bin, args...) //nolint:gosec // binary and args come from config and the compiler
	procgroup.Set(proc)
	proc.WaitDelay = e.killGrace

	stderr := NewLineRing(stderrTailLines)
	proc.Stderr = stderr
	pr, pw := io.Pipe()
	proc.Stdout = pw

	if err := proc.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return Failure(KindExternalTool, "failed to start ffmpeg", err.Error())
	}
	removePartial = !preexisting
	logger.Info().
		Str(xlog.FieldEvent, "render.start").
		Int(xlog.FieldPID, proc.Process.Pid).
		Str(xlog.FieldOutput, cmd.Output).
		Msg("ffmpeg started")

	progressCh := make(chan Progress, 16)
	stop := make(chan struct{})
	parserDone := make(chan struct{})
	go func() {
		defer close(parserDone)
		defer close(progressCh)
		parseProgress(pr, progressCh, stop)
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- proc.Wait() }()

	reason, waitErr := e.supervise(ctx, proc, waitCh, progressCh, stop, cmd, logger)

	_ = pw.Close()
	<-parserDone

	switch reason {
	case stopCanceled:
		return Failure(KindCanceled, "render canceled", context.Cause(ctx).Error())
	case stopStalled:
		metrics.IncRenderStall(target)
		return Failure(KindExternalTool,
			fmt.Sprintf("ffmpeg stalled: no progress for %s", e.stallTimeout), stderr.String())
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return Failure(KindExternalTool,
				fmt.Sprintf("ffmpeg exited with code %d", exitErr.ExitCode()), stderr.String())
		}
		return Failure(KindExternalTool, "ffmpeg failed", waitErr.Error())
	}

	info, err := os.Stat(cmd.Output)
	if err != nil {
		return Failure(KindIO, "output missing", err.Error())
	}
	if info.Size() == 0 {
		return Failure(KindIO, "output is empty", cmd.Output)
	}

	return Success(cmd.Output, info.Size(), e.duration(ctx, cmd, logger), "render completed")
}

type stopReason int

const (
	stopExited stopReason = iota
	stopCanceled
	stopStalled
)

// supervise waits for ffmpeg to exit while watching ctx and progress.
// It closes stop before tearing the process group down so the progress
// parser keeps draining stdout and Wait can return.
func (e *Executor) supervise(
	ctx context.Context,
	proc *exec.Cmd,
	waitCh <-chan error,
	progressCh <-chan Progress,
	stop chan struct{},
	cmd *compiler.Command,
	logger zerolog.Logger,
) (stopReason, error) {
	defer func() {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}()

	begin := time.Now()
	lastProgressAt := begin
	var last Progress

	var tickC <-chan time.Time
	if e.stallTimeout > 0 {
		ticker := time.NewTicker(watchTick(e.stallTimeout))
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case err := <-waitCh:
			return stopExited, err

		case <-ctx.Done():
			close(stop)
			logger.Info().Str(xlog.FieldEvent, "render.cancel").Msg("terminating ffmpeg process group")
			return stopCanceled, procgroup.Terminate(proc, waitCh, e.killGrace)

		case p, ok := <-progressCh:
			if !ok {
				progressCh = nil
				continue
			}
			if p.advanced(last) {
				last = p
				lastProgressAt = time.Now()
				logger.Debug().
					Str(xlog.FieldEvent, "render.progress").
					Int64("frame", p.Frame).
					Int64("out_time_ms", p.OutTimeUs/1000).
					Int64("expected_ms", cmd.ExpectedDuration.Milliseconds()).
					Str("speed", p.Speed).
					Msg("ffmpeg progress")
			}

		case <-tickC:
			if time.Since(begin) < e.startupGrace {
				continue
			}
			if since := time.Since(lastProgressAt); since > e.stallTimeout {
				logger.Error().
					Str(xlog.FieldEvent, "render.stalled").
					Dur("since_progress", since).
					Int64("last_out_time_us", last.OutTimeUs).
					Int64("last_total_size", last.TotalSize).
					Msg("ffmpeg stalled, killing process group")
				close(stop)
				return stopStalled, procgroup.Terminate(proc, waitCh, e.killGrace)
			}
		}
	}
}

func (e *Executor) duration(ctx context.Context, cmd *compiler.Command, logger zerolog.Logger) time.Duration {
	if e.prober == nil {
		return cmd.ExpectedDuration
	}
	info, err := e.prober.Probe(ctx, cmd.Output)
	if err != nil {
		logger.Warn().Err(err).Str(xlog.FieldPath, cmd.Output).Msg("probe of render output failed, using expected duration")
		return cmd.ExpectedDuration
	}
	return time.Duration(info.DurationMs) * time.Millisecond
}

func watchTick(stall time.Duration) time.Duration {
	tick := stall / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	if tick > time.Second {
		tick = time.Second
	}
	return tick
}
