// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import "errors"

var (
	// ErrInvalidTrim is returned when a trim window is negative or inverted.
	ErrInvalidTrim = errors.New("invalid trim window")
	// ErrInvalidValue covers out-of-range numeric or textual fields.
	ErrInvalidValue = errors.New("invalid value")
	// ErrUnknownPreset is returned for filter/effect/transition names that do not exist.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrMissingSource is returned for clips without a source path.
	ErrMissingSource = errors.New("missing source path")
	// ErrTooManyTransitions is returned when a track has more transitions than clip gaps.
	ErrTooManyTransitions = errors.New("more transitions than clip boundaries")
)
