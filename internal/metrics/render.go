// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of vcompose.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcompose_render_runs_total",
		Help: "Total ffmpeg render runs by target and outcome",
	}, []string{"target", "outcome"})

	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vcompose_render_duration_seconds",
		Help:    "Wall clock duration of ffmpeg render runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2.0, 12), // 100ms to ~3.4min
	}, []string{"target"})

	renderOutputBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcompose_render_output_bytes_total",
		Help: "Total bytes written by successful renders",
	}, []string{"target"})

	renderStallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcompose_render_stalls_total",
		Help: "Renders killed because ffmpeg stopped reporting progress",
	}, []string{"target"})

	compileErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcompose_compile_errors_total",
		Help: "Timelines rejected before ffmpeg was invoked",
	}, []string{"target"})

	processSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcompose_process_signals_total",
		Help: "Signals delivered to ffmpeg process groups",
	}, []string{"signal", "outcome"})
)

// ObserveRender records one finished render run.
// outcome ∈ {success,external_tool,io,canceled,configuration,unknown}.
func ObserveRender(target, outcome string, elapsed time.Duration, bytes int64) {
	t := normalizeTarget(target)
	renderRunsTotal.WithLabelValues(t, normalizeOutcome(outcome)).Inc()
	renderDuration.WithLabelValues(t).Observe(elapsed.Seconds())
	if bytes > 0 {
		renderOutputBytes.WithLabelValues(t).Add(float64(bytes))
	}
}

// IncRenderStall records a render killed by the stall watchdog.
func IncRenderStall(target string) {
	renderStallsTotal.WithLabelValues(normalizeTarget(target)).Inc()
}

// IncCompileError records a timeline rejected before execution.
func IncCompileError(target string) {
	compileErrorsTotal.WithLabelValues(normalizeTarget(target)).Inc()
}

// ObserveProcessSignal records a signal sent to an ffmpeg process group.
func ObserveProcessSignal(signal, outcome string) {
	processSignalsTotal.WithLabelValues(signal, outcome).Inc()
}

func normalizeTarget(target string) string {
	switch t := strings.ToLower(strings.TrimSpace(target)); t {
	case "preview", "export":
		return t
	default:
		return "unknown"
	}
}

func normalizeOutcome(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "success", "external_tool", "io", "canceled", "configuration":
		return o
	default:
		return "unknown"
	}
}
