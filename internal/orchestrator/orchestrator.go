// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator runs the two render pipelines of an editing session:
// debounced, cancellable previews and single-shot exports.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/executor"
	"github.com/ManuGH/vcompose/internal/history"
	xlog "github.com/ManuGH/vcompose/internal/log"
)

// DefaultDebounce is the quiet period before a preview build starts.
const DefaultDebounce = 100 * time.Millisecond

// ErrClosed is returned by SchedulePreview after Close.
var ErrClosed = errors.New("orchestrator closed")

// Runner executes compiled commands.
type Runner interface {
	Run(ctx context.Context, cmd *compiler.Command) executor.Result
}

// Recorder persists export outcomes.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Config controls an Orchestrator.
type Config struct {
	// OutputDir receives preview and export files.
	OutputDir string
	// SessionID tags logs and history entries.
	SessionID string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Preview options; Output is chosen per build.
	Preview compiler.PreviewOptions
	// FailureLogInterval throttles preview failure warnings.
	FailureLogInterval time.Duration
}

// Outcome is a finished build.
type Outcome struct {
	BuildID    string
	Generation uint64
	Result     executor.Result
	Finished   time.Time
}

// PipelineStatus is the state of one pipeline.
type PipelineStatus struct {
	State State
	Last  *Outcome
}

// Status describes both pipelines.
type Status struct {
	Preview    PipelineStatus
	Export     PipelineStatus
	Generation uint64
	// LatestPreview is the file of the newest delivered preview.
	LatestPreview string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder stores every export outcome.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// OnPreview is called with every delivered preview. Only the newest
// successful build of a burst of edits is delivered.
func OnPreview(fn func(executor.Result)) Option {
	return func(o *Orchestrator) { o.onPreview = fn }
}

// OnExport is called with every export result, success or failure.
func OnExport(fn func(executor.Result)) Option {
	return func(o *Orchestrator) { o.onExport = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator owns the preview and export pipelines of one session.
type Orchestrator struct {
	runner   Runner
	recorder Recorder
	cfg      Config
	logger   zerolog.Logger

	onPreview func(executor.Result)
	onExport  func(executor.Result)

	failureLog *rate.Sometimes

	preview *pipeline
	export  *pipeline

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	compiler    *compiler.Compiler
	closed      bool
	generation  uint64
	timer       *time.Timer
	inflight    *inflight
	lastPreview *Outcome
	lastExport  *Outcome
	current     string
	exporting   bool
}

type inflight struct {
	generation uint64
	cancel     context.CancelFunc
}

// New creates an Orchestrator. comp and runner are required.
func New(comp *compiler.Compiler, runner Runner, cfg Config, opts ...Option) (*Orchestrator, error) {
	if comp == nil || runner == nil {
		return nil, errors.New("orchestrator needs a compiler and a runner")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("orchestrator needs an output directory")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Preview == (compiler.PreviewOptions{}) {
		cfg.Preview = compiler.DefaultPreviewOptions("")
	}
	if cfg.FailureLogInterval <= 0 {
		cfg.FailureLogInterval = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		compiler:   comp,
		runner:     runner,
		cfg:        cfg,
		logger:     xlog.WithComponent("orchestrator"),
		failureLog: &rate.Sometimes{First: 1, Interval: cfg.FailureLogInterval},
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.SessionID != "" {
		o.logger = o.logger.With().Str(xlog.FieldSessionID, cfg.SessionID).Logger()
	}
	o.preview = newPipeline("preview", o.logger)
	o.export = newPipeline("export", o.logger)
	return o, nil
}

// Status returns a snapshot of both pipelines.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Preview:       PipelineStatus{State: o.preview.state(), Last: o.lastPreview},
		Export:        PipelineStatus{State: o.export.state(), Last: o.lastExport},
		Generation:    o.generation,
		LatestPreview: o.current,
	}
}

// Close cancels pending and running previews and waits for all builds,
// including a running export, to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
	if o.inflight != nil {
		o.inflight.cancel()
	}
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	o.logger.Debug().Str(xlog.FieldEvent, "orchestrator.closed").Msg("orchestrator closed")
}

// SetCompiler replaces the compiler used by builds that start afterwards,
// typically after new sources were probed.
func (o *Orchestrator) SetCompiler(c *compiler.Compiler) {
	if c == nil {
		return
	}
	o.mu.Lock()
	o.compiler = c
	o.mu.Unlock()
}

func (o *Orchestrator) currentCompiler() *compiler.Compiler {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.compiler
}

func newBuildID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
