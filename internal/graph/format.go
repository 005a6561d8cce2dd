// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"math"
	"strconv"
	"strings"
)

// num renders f with at most six decimals and no trailing zeros.
func num(f float64) string {
	r := math.Round(f*1e6) / 1e6
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// secs renders a millisecond value in seconds.
func secs(ms int64) string {
	return num(float64(ms) / 1000)
}

// EscapeOptionValue escapes a value for the filter option parser
// (first level of ffmpeg filtergraph escaping).
func EscapeOptionValue(s string) string {
	return escapeChars(s, `\':`)
}

// EscapeGraphValue escapes a value for the filtergraph parser
// (second level of ffmpeg filtergraph escaping).
func EscapeGraphValue(s string) string {
	return escapeChars(s, `\'[],;`)
}

// EscapeText escapes user text embedded as a filter option inside a filter
// graph, applying both levels in order.
func EscapeText(s string) string {
	return EscapeGraphValue(EscapeOptionValue(s))
}

func escapeChars(s, special string) string {
	if !strings.ContainsAny(s, special) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
