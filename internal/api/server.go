// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes editing sessions over HTTP. Each session owns a
// preview/export orchestrator; timeline uploads schedule debounced previews
// and export requests block until the render finishes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vcompose/internal/api/middleware"
	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/graph"
	"github.com/ManuGH/vcompose/internal/history"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/orchestrator"
)

// SourceProber resolves source metadata for the graph builder.
type SourceProber interface {
	Sources(ctx context.Context, paths []string) (map[string]graph.SourceInfo, error)
}

// HistoryStore is the export ledger.
type HistoryStore interface {
	orchestrator.Recorder
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Check(ctx context.Context) error
}

// Config controls the HTTP surface.
type Config struct {
	// OutputDir holds one subdirectory per session.
	OutputDir string
	// MediaRoot is the only directory timeline sources may come from.
	MediaRoot string
	Preview   compiler.PreviewOptions
	Debounce  time.Duration
	// MaxSessions caps open sessions; 0 is unlimited.
	MaxSessions  int
	RateLimit    int
	MaxBodyBytes int64
	// TracingService enables otelhttp spans when set.
	TracingService string
	Version        string
}

// Deps are the collaborators of a Server. Compiler and Runner are required.
type Deps struct {
	Compiler *compiler.Compiler
	Runner   orchestrator.Runner
	Prober   SourceProber
	History  HistoryStore
}

// Server serves the vcompose API.
type Server struct {
	cfg      Config
	deps     Deps
	sessions *sessionStore
	logger   zerolog.Logger
}

// New validates cfg and deps and creates a Server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Compiler == nil || deps.Runner == nil {
		return nil, errors.New("api server needs a compiler and a runner")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("api server needs an output directory")
	}
	if cfg.MediaRoot == "" {
		return nil, errors.New("api server needs a media root")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.MkdirAll(cfg.MediaRoot, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Server{
		cfg:      cfg,
		deps:     deps,
		sessions: newSessionStore(cfg.MaxSessions),
		logger:   xlog.WithComponent("api"),
	}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.cfg.TracingService,
		RateLimit:      s.cfg.RateLimit,
		MaxBodyBytes:   s.cfg.MaxBodyBytes,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/timeline", s.handlePutTimeline)
			r.Get("/timeline", s.handleGetTimeline)
			r.Get("/preview", s.handlePreviewStatus)
			r.Get("/preview/file", s.handlePreviewFile)
			r.Post("/export", s.handleExport)
			r.Get("/export/file", s.handleExportFile)
		})
		r.Get("/exports", s.handleRecentExports)
	})
	return r
}

// Shutdown closes every session. Running exports are waited for until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	sessions := s.sessions.drain()
	s.logger.Info().Str(xlog.FieldEvent, "api.shutdown").Int("sessions", len(sessions)).Msg("closing sessions")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sess := range sessions {
			sess.orch.Close()
		}
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close sessions: %w", ctx.Err())
	}
}

func (s *Server) newSession(id string) (*session, error) {
	dir := filepath.Join(s.cfg.OutputDir, id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	opts := []orchestrator.Option{
		orchestrator.WithLogger(s.logger.With().Str(xlog.FieldSessionID, id).Logger()),
	}
	if s.deps.History != nil {
		opts = append(opts, orchestrator.WithRecorder(s.deps.History))
	}
	orch, err := orchestrator.New(s.deps.Compiler, s.deps.Runner, orchestrator.Config{
		OutputDir: dir,
		SessionID: id,
		Debounce:  s.cfg.Debounce,
		Preview:   s.cfg.Preview,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &session{id: id, dir: dir, created: time.Now().UTC(), orch: orch}, nil
}

type sessionKey struct{}

// withSession resolves {id} and puts the session into the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := s.sessions.get(id)
		if !ok {
			writeNotFound(w, "session")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = xlog.ContextWithSessionID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session {
	sess, _ := r.Context().Value(sessionKey{}).(*session)
	return sess
}
