// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/vcompose/internal/compiler"
)

// Kind classifies a failed render.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindExternalTool
	KindIO
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindExternalTool:
		return "external_tool"
	case KindIO:
		return "io"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the outcome of a render. Exactly one of the success fields
// (File, SizeBytes, Duration) or the failure fields (Kind, Detail) is
// meaningful, selected by OK.
type Result struct {
	OK bool

	File      string
	SizeBytes int64
	Duration  time.Duration

	Kind   Kind
	Detail string

	Message string
}

// Success builds a successful Result.
func Success(file string, size int64, duration time.Duration, message string) Result {
	return Result{OK: true, File: file, SizeBytes: size, Duration: duration, Message: message}
}

// Failure builds a failed Result.
func Failure(kind Kind, message, detail string) Result {
	return Result{Kind: kind, Message: message, Detail: detail}
}

// FromError converts a build or compile error into a failed Result.
// Configuration errors keep their class; anything else is treated as IO.
func FromError(err error) Result {
	if err == nil {
		return Failure(KindIO, "unknown error", "")
	}
	var cfgErr *compiler.ConfigurationError
	if errors.As(err, &cfgErr) {
		return Failure(KindConfiguration, cfgErr.Error(), "")
	}
	return Failure(KindIO, err.Error(), "")
}

// Outcome is the metrics label of r.
func (r Result) Outcome() string {
	if r.OK {
		return "success"
	}
	return r.Kind.String()
}

// Err returns nil for successes and an *Error otherwise.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message, Detail: r.Detail}
}

// Error is the error form of a failed Result.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
