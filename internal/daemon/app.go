// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs the vcompose HTTP server and its shutdown sequence.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xlog "github.com/ManuGH/vcompose/internal/log"
)

// ShutdownHook releases a resource during graceful shutdown. Hooks run in
// reverse registration order.
type ShutdownHook func(ctx context.Context) error

// Config controls the HTTP server.
type Config struct {
	ListenAddr        string
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// App owns the server lifecycle.
type App struct {
	cfg     Config
	handler http.Handler
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
	hooks   []namedHook
	addr    chan net.Addr
}

// NewApp creates an App serving handler.
func NewApp(cfg Config, handler http.Handler) (*App, error) {
	if handler == nil {
		return nil, ErrMissingHandler
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	return &App{
		cfg:     cfg,
		handler: handler,
		logger:  xlog.WithComponent("daemon"),
		addr:    make(chan net.Addr, 1),
	}, nil
}

// RegisterShutdownHook adds a hook that runs after the server stopped
// accepting requests.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// Addr reports the bound listen address once the server is up.
func (a *App) Addr() <-chan net.Addr { return a.addr }

// Run serves until ctx is cancelled or the listener fails, then shuts the
// server down and runs the hooks. Write timeouts are left unset because
// export requests block for the whole render.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		err = fmt.Errorf("listen on %s: %w", a.cfg.ListenAddr, err)
		return errors.Join(err, a.runHooks(context.WithoutCancel(ctx)))
	}
	a.addr <- ln.Addr()

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().
			Str(xlog.FieldEvent, "server.listening").
			Str("addr", ln.Addr().String()).
			Msg("API server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str(xlog.FieldEvent, "server.failed").Msg("API server failed")
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Str(xlog.FieldEvent, "server.shutdown").Msg("shutdown signal received")
		// Detached but bounded so shutdown completes after the parent is cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, a.runHooks(shutdownCtx))
	})
	return g.Wait()
}

func (a *App) runHooks(ctx context.Context) error {
	a.mu.Lock()
	hooks := append([]namedHook(nil), a.hooks...)
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.hook(ctx); err != nil {
			a.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Msg("shutdown hook done")
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown hooks: %w", errors.Join(errs...))
	}
	return nil
}
