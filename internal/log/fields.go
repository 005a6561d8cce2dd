// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldBuildID   = "build_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldTarget    = "target"
	FieldPID       = "pid"

	// Media fields
	FieldResolution = "resolution"
	FieldFPS        = "fps"
	FieldDurationMs = "duration_ms"
	FieldSizeBytes  = "size_bytes"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath   = "path"
	FieldOutput = "output"
)
