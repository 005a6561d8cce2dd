// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingHandler is returned when an App is created without a handler.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrAlreadyStarted is returned by a second Run.
	ErrAlreadyStarted = errors.New("app already started")
)
