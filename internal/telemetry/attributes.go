// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by vcompose spans.
const (
	// Timeline attributes
	TimelineVideoTracksKey = "timeline.video_tracks"
	TimelineAudioTracksKey = "timeline.audio_tracks"
	TimelineClipsKey       = "timeline.clips"
	TimelineOverlaysKey    = "timeline.overlays"

	// Render attributes
	RenderTargetKey     = "render.target"
	RenderBuildIDKey    = "render.build_id"
	RenderGenerationKey = "render.generation"
	RenderInputsKey     = "render.inputs"
	RenderOutputKey     = "render.output"
	RenderSizeBytesKey  = "render.size_bytes"
	RenderDurationKey   = "render.duration_ms"
	RenderOutcomeKey    = "render.outcome"

	// Session attributes
	SessionIDKey = "session.id"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// TimelineAttributes describes the shape of a timeline.
func TimelineAttributes(videoTracks, audioTracks, clips, overlays int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(TimelineVideoTracksKey, videoTracks),
		attribute.Int(TimelineAudioTracksKey, audioTracks),
		attribute.Int(TimelineClipsKey, clips),
		attribute.Int(TimelineOverlaysKey, overlays),
	}
}

// RenderAttributes describes one build. Empty values are omitted.
func RenderAttributes(target, buildID string, generation uint64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if target != "" {
		attrs = append(attrs, attribute.String(RenderTargetKey, target))
	}
	if buildID != "" {
		attrs = append(attrs, attribute.String(RenderBuildIDKey, buildID))
	}
	if generation > 0 {
		attrs = append(attrs, attribute.Int64(RenderGenerationKey, int64(generation)))
	}
	return attrs
}

// ResultAttributes describes the outcome of a render.
func ResultAttributes(outcome, output string, sizeBytes, durationMs int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RenderOutcomeKey, outcome),
		attribute.String(RenderOutputKey, output),
		attribute.Int64(RenderSizeBytesKey, sizeBytes),
		attribute.Int64(RenderDurationKey, durationMs),
	}
}

// ErrorAttributes marks a span as failed with a classification.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
