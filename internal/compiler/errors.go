// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compiler

import (
	"errors"
	"fmt"
)

// ErrPartialResolution is returned when only one of width/height is set.
var ErrPartialResolution = errors.New("width and height must be set together")

// ErrOutputIsInput is returned when the output path names a source file.
var ErrOutputIsInput = errors.New("output would overwrite a source")

// ConfigurationError reports a request that cannot be compiled. It is
// always raised before ffmpeg is invoked.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "configuration error: " + e.Reason
	}
	if e.Reason == "" {
		return "configuration error: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(reason string, err error) error {
	return &ConfigurationError{Reason: reason, Err: err}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
