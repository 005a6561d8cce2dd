// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/executor"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/metrics"
	"github.com/ManuGH/vcompose/internal/telemetry"
	"github.com/ManuGH/vcompose/internal/timeline"
)

const previewPrefix = "preview-"

// SchedulePreview snapshots tl and (re)starts the debounce timer. Any
// pending or running preview is superseded; only the newest generation's
// result is ever delivered. It returns the generation assigned to tl.
func (o *Orchestrator) SchedulePreview(tl timeline.Timeline) (uint64, error) {
	snap := tl.Clone()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, ErrClosed
	}

	o.generation++
	gen := o.generation
	metrics.IncPreviewScheduled()

	if o.timer != nil && o.timer.Stop() {
		metrics.IncPreviewSuperseded()
	}
	if o.inflight != nil {
		o.inflight.cancel()
		o.inflight = nil
		metrics.IncPreviewSuperseded()
	}
	o.timer = time.AfterFunc(o.cfg.Debounce, func() { o.startPreview(gen, snap) })

	o.logger.Debug().
		Str(xlog.FieldEvent, "preview.scheduled").
		Uint64("generation", gen).
		Msg("preview scheduled")
	return gen, nil
}

func (o *Orchestrator) startPreview(gen uint64, tl timeline.Timeline) {
	o.mu.Lock()
	if o.closed || gen != o.generation {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(o.ctx)
	o.inflight = &inflight{generation: gen, cancel: cancel}
	o.preview.begin(ctx)
	o.wg.Add(1)
	o.mu.Unlock()

	defer o.wg.Done()
	defer cancel()
	o.buildPreview(ctx, gen, tl)
}

func (o *Orchestrator) buildPreview(ctx context.Context, gen uint64, tl timeline.Timeline) {
	buildID := newBuildID()
	ctx = xlog.ContextWithBuildID(ctx, buildID)
	if o.cfg.SessionID != "" {
		ctx = xlog.ContextWithSessionID(ctx, o.cfg.SessionID)
	}
	logger := xlog.WithContext(ctx, o.logger).With().Uint64("generation", gen).Logger()

	ctx, span := telemetry.StartSpan(ctx, "preview.build",
		append(telemetry.RenderAttributes("preview", buildID, gen), timelineAttributes(tl)...)...)

	opts := o.cfg.Preview
	opts.Output = filepath.Join(o.cfg.OutputDir, previewPrefix+buildID+compiler.FormatMP4.Extension())

	var res executor.Result
	cmd, err := o.currentCompiler().Preview(tl, opts)
	if err != nil {
		metrics.IncCompileError("preview")
		res = executor.FromError(err)
	} else {
		res = o.runner.Run(ctx, cmd)
	}
	telemetry.EndSpan(span, res.Err(), res.Outcome())

	outcome := &Outcome{BuildID: buildID, Generation: gen, Result: res, Finished: time.Now()}

	o.mu.Lock()
	if o.inflight != nil && o.inflight.generation == gen {
		o.inflight = nil
	}
	if o.closed || gen != o.generation {
		// A newer build that already started owns the Building state.
		if o.inflight == nil {
			o.preview.fire(ctx, EventCancel)
		}
		o.mu.Unlock()
		if res.OK {
			o.removePreview(res.File)
		}
		logger.Debug().Str(xlog.FieldEvent, "preview.discarded").Msg("superseded preview discarded")
		return
	}

	if !res.OK {
		o.preview.fire(ctx, EventFail)
		o.lastPreview = outcome
		o.mu.Unlock()
		logger.Debug().Str("kind", res.Kind.String()).Str("detail", res.Detail).Msg(res.Message)
		o.failureLog.Do(func() {
			logger.Warn().
				Str(xlog.FieldEvent, "preview.failed").
				Str("kind", res.Kind.String()).
				Msg("preview build failed, retrying on next edit")
		})
		return
	}

	o.preview.fire(ctx, EventSucceed)
	o.lastPreview = outcome
	previous := o.current
	o.current = res.File
	o.mu.Unlock()

	if err := o.publishLatest(outcome); err != nil {
		logger.Warn().Err(err).Msg("failed to publish latest preview")
	}
	if previous != "" && previous != res.File {
		o.removePreview(previous)
	}

	logger.Info().
		Str(xlog.FieldEvent, "preview.ready").
		Str(xlog.FieldOutput, res.File).
		Int64(xlog.FieldSizeBytes, res.SizeBytes).
		Msg("preview ready")

	if o.onPreview != nil {
		o.onPreview(res)
	}
}

// removePreview deletes a preview written by this orchestrator. Anything
// outside OutputDir or not named like a preview is left alone.
func (o *Orchestrator) removePreview(path string) {
	if filepath.Dir(path) != filepath.Clean(o.cfg.OutputDir) ||
		!strings.HasPrefix(filepath.Base(path), previewPrefix) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.logger.Debug().Err(err).Str(xlog.FieldPath, path).Msg("remove superseded preview")
	}
}

func timelineAttributes(tl timeline.Timeline) []attribute.KeyValue {
	clips := 0
	for _, tr := range tl.VideoTracks {
		clips += len(tr.Clips)
	}
	for _, tr := range tl.AudioTracks {
		clips += len(tr.Clips)
	}
	return telemetry.TimelineAttributes(len(tl.VideoTracks), len(tl.AudioTracks), clips, len(tl.TextOverlays))
}
