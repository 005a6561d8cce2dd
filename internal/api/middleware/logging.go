// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	xlog "github.com/ManuGH/vcompose/internal/log"
)

// Logging writes one structured access line per request.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			logger := xlog.WithComponentFromContext(r.Context(), "api")
			ev := logger.Info()
			switch {
			case sw.statusCode >= 500:
				ev = logger.Error()
			case sw.statusCode >= 400:
				ev = logger.Warn()
			case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
				ev = logger.Debug()
			}
			if traceID, _ := ExtractTraceContext(r); traceID != "" {
				ev = ev.Str("trace_id", traceID)
			}
			ev.Str(xlog.FieldEvent, "http.request").
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Str("path", r.URL.Path).
				Int("status", sw.statusCode).
				Int("bytes", sw.bytesWritten).
				Int64(xlog.FieldDurationMs, time.Since(start).Milliseconds()).
				Msg("request served")
		})
	}
}
