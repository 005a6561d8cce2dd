// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vcompose/internal/compiler"
)

func TestParseProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=12",
		"fps=24.5",
		"out_time_us=500000",
		"total_size=1024",
		"speed=1.5x",
		"progress=continue",
		"garbage line",
		"frame=24",
		"out_time_us=1000000",
		"progress=end",
	}, "\n")

	ch := make(chan Progress, 4)
	parseProgress(strings.NewReader(input), ch, make(chan struct{}))
	close(ch)

	var got []Progress
	for p := range ch {
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, Progress{Frame: 12, FPS: 24.5, OutTimeUs: 500000, TotalSize: 1024, Speed: "1.5x"}, got[0])
	assert.Equal(t, int64(24), got[1].Frame)
	assert.True(t, got[1].Done)
	assert.True(t, got[1].advanced(got[0]))
	assert.False(t, got[0].advanced(got[0]))
}

func TestParseProgressDrainsAfterStop(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	ch := make(chan Progress) // never read

	parseProgress(strings.NewReader("progress=continue\nprogress=continue\n"), ch, stop)
}

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	_, _ = r.Write([]byte("one\ntwo\n"))
	_, _ = r.Write([]byte("thr"))
	_, _ = r.Write([]byte("ee\r\n\nfour\nfive"))

	assert.Equal(t, []string{"three", "four", "five"}, r.Lines())
	assert.Equal(t, "three\nfour\nfive", r.String())
}

func TestFromError(t *testing.T) {
	err := fmt.Errorf("compile export: %w", &compiler.ConfigurationError{Reason: "unsupported format"})

	cfg := FromError(err)
	assert.Equal(t, KindConfiguration, cfg.Kind)

	other := FromError(errors.New("disk full"))
	assert.Equal(t, KindIO, other.Kind)
	assert.Equal(t, "disk full", other.Message)
}
