// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/executor"
	"github.com/ManuGH/vcompose/internal/history"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/metrics"
	"github.com/ManuGH/vcompose/internal/telemetry"
	"github.com/ManuGH/vcompose/internal/timeline"
)

// Export renders tl immediately. It is not debounced and cannot be
// cancelled once started: ctx only carries values. An export requested
// while another one is running fails with KindConfiguration.
func (o *Orchestrator) Export(ctx context.Context, tl timeline.Timeline, opts compiler.ExportOptions) executor.Result {
	snap := tl.Clone()
	ctx = context.WithoutCancel(ctx)

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return executor.Failure(executor.KindConfiguration, ErrClosed.Error(), "")
	case o.exporting:
		o.mu.Unlock()
		return executor.Failure(executor.KindConfiguration, "an export is already running", "")
	}
	o.exporting = true
	o.wg.Add(1)
	o.mu.Unlock()

	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		o.exporting = false
		o.mu.Unlock()
	}()

	buildID := newBuildID()
	ctx = xlog.ContextWithBuildID(ctx, buildID)
	if o.cfg.SessionID != "" {
		ctx = xlog.ContextWithSessionID(ctx, o.cfg.SessionID)
	}
	logger := xlog.WithContext(ctx, o.logger)

	ctx, span := telemetry.StartSpan(ctx, "export.build",
		append(telemetry.RenderAttributes("export", buildID, 0), timelineAttributes(snap)...)...)

	if opts.Output == "" {
		opts.Output = filepath.Join(o.cfg.OutputDir, "export-"+buildID+exportExtension(opts.Format))
	}

	o.export.begin(ctx)
	start := time.Now()

	var res executor.Result
	cmd, err := o.currentCompiler().Export(snap, opts)
	if err != nil {
		metrics.IncCompileError("export")
		res = executor.FromError(err)
	} else {
		res = o.runner.Run(ctx, cmd)
	}
	span.SetAttributes(telemetry.ResultAttributes(res.Outcome(), opts.Output, res.SizeBytes, res.Duration.Milliseconds())...)
	telemetry.EndSpan(span, res.Err(), res.Outcome())

	if res.OK {
		o.export.fire(ctx, EventSucceed)
	} else {
		o.export.fire(ctx, EventFail)
	}

	o.mu.Lock()
	o.lastExport = &Outcome{BuildID: buildID, Result: res, Finished: time.Now()}
	o.mu.Unlock()

	o.record(ctx, buildID, opts, res, time.Since(start))

	ev := logger.Info()
	if !res.OK {
		ev = logger.Error().Str("kind", res.Kind.String()).Str("detail", res.Detail)
	}
	ev.Str(xlog.FieldEvent, "export.finished").
		Str(xlog.FieldOutput, opts.Output).
		Bool("ok", res.OK).
		Msg(res.Message)

	if o.onExport != nil {
		o.onExport(res)
	}
	return res
}

// ExportAsync runs Export on its own goroutine. The channel receives
// exactly one Result and is then closed.
func (o *Orchestrator) ExportAsync(ctx context.Context, tl timeline.Timeline, opts compiler.ExportOptions) <-chan executor.Result {
	ch := make(chan executor.Result, 1)
	snap := tl.Clone()
	go func() {
		defer close(ch)
		ch <- o.Export(ctx, snap, opts)
	}()
	return ch
}

func (o *Orchestrator) record(ctx context.Context, buildID string, opts compiler.ExportOptions, res executor.Result, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}
	entry := history.Entry{
		ID:         buildID,
		SessionID:  o.cfg.SessionID,
		Output:     opts.Output,
		Format:     string(opts.Format),
		OK:         res.OK,
		Message:    res.Message,
		SizeBytes:  res.SizeBytes,
		DurationMs: res.Duration.Milliseconds(),
		ElapsedMs:  elapsed.Milliseconds(),
	}
	if !res.OK {
		entry.Kind = res.Kind.String()
	}
	if err := o.recorder.Record(ctx, entry); err != nil {
		o.logger.Warn().Err(err).Str(xlog.FieldBuildID, buildID).Msg("failed to record export")
	}
}

func exportExtension(f compiler.Format) string {
	if parsed, err := compiler.ParseFormat(string(f)); err == nil {
		return parsed.Extension()
	}
	return compiler.FormatMP4.Extension()
}
