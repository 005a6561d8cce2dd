// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vcompose_pipeline_transitions_total",
		Help: "State machine transitions of the preview and export pipelines",
	}, []string{"pipeline", "from", "to"})

	previewSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcompose_preview_superseded_total",
		Help: "Preview builds cancelled or discarded because a newer edit arrived",
	})

	previewScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcompose_preview_scheduled_total",
		Help: "Edit events received by the preview debouncer",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vcompose_active_sessions",
		Help: "Editing sessions currently held by the API",
	})
)

// ObserveTransition records a pipeline state change.
func ObserveTransition(pipeline, from, to string) {
	pipelineTransitionsTotal.WithLabelValues(pipeline, from, to).Inc()
}

// IncPreviewSuperseded records a preview build made obsolete by a newer edit.
func IncPreviewSuperseded() { previewSupersededTotal.Inc() }

// IncPreviewScheduled records an edit event handed to the debouncer.
func IncPreviewScheduled() { previewScheduledTotal.Inc() }

// SetActiveSessions publishes the number of open editing sessions.
func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }
