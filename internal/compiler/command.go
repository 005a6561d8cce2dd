// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compiler

import (
	"strings"
	"time"
)

// Target distinguishes preview renders from exports.
type Target string

const (
	TargetPreview Target = "preview"
	TargetExport  Target = "export"
)

// Command is one compiled ffmpeg invocation. Args exclude the binary.
type Command struct {
	Target           Target
	Args             []string
	Inputs           []string
	Output           string
	HasAudio         bool
	ExpectedDuration time.Duration
}

// Line renders the invocation as a shell-quoted command line.
func (c *Command) Line(bin string) string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, shellQuote(bin))
	for _, a := range c.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func (c *Command) String() string { return c.Line("ffmpeg") }

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./:=+,@%", r)
}
