// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	requestIDKey ctxKey = FieldRequestID
	sessionIDKey ctxKey = FieldSessionID
	buildIDKey   ctxKey = FieldBuildID
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID stores the provided request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithSessionID stores the editing session ID in the context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

// ContextWithBuildID stores the preview/export build ID in the context.
func ContextWithBuildID(ctx context.Context, id string) context.Context {
	return withValue(ctx, buildIDKey, id)
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// SessionIDFromContext extracts the session ID from context if present.
func SessionIDFromContext(ctx context.Context) string { return stringValue(ctx, sessionIDKey) }

// BuildIDFromContext extracts the build ID from context if present.
func BuildIDFromContext(ctx context.Context) string { return stringValue(ctx, buildIDKey) }

// WithContext enriches the supplied logger with correlation fields from context.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	builder := logger.With()
	added := false
	for _, k := range []ctxKey{requestIDKey, sessionIDKey, buildIDKey} {
		if v := stringValue(ctx, k); v != "" {
			builder = builder.Str(string(k), v)
			added = true
		}
	}
	if !added {
		return logger
	}
	return builder.Logger()
}

// WithComponentFromContext returns a component logger enriched with
// correlation fields from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
