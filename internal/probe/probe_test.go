// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vcompose/internal/graph"
)

const sampleOutput = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001", "duration": "12.000"},
    {"codec_type": "audio", "codec_name": "aac", "duration": "12.010"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.012000"}
}`

func TestParse(t *testing.T) {
	info, err := Parse([]byte(sampleOutput))
	require.NoError(t, err)

	assert.Equal(t, "mov", info.FormatName)
	assert.Equal(t, int64(12012), info.DurationMs)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.True(t, info.HasVideo)
	assert.True(t, info.HasAudio)
}

func TestParseSilentVideoFallsBackToStreamDuration(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","codec_name":"h264","duration":"4.5","avg_frame_rate":"25/1"}],"format":{"format_name":"matroska,webm"}}`
	info, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.False(t, info.HasAudio)
	assert.Equal(t, int64(4500), info.DurationMs)
	assert.Equal(t, 25.0, info.FPS)
	assert.Equal(t, "matroska", info.FormatName)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNoStreams)

	_, err = Parse([]byte(`{"streams":[{"codec_type":"data"}],"format":{}}`))
	assert.ErrorIs(t, err, ErrNoStreams)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	s := strings.Repeat("x", maxStderr+10)
	assert.Len(t, truncate(s), maxStderr+3)
	assert.Equal(t, "short", truncate("short"))
}

func fakeProbe(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + body + "\nJSON\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestProbeRunsBinary(t *testing.T) {
	p := New(fakeProbe(t, sampleOutput), 0)
	info, err := p.Probe(context.Background(), "/media/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(12012), info.DurationMs)
}

func TestProbeAll(t *testing.T) {
	p := New(fakeProbe(t, sampleOutput), 0)
	infos, err := p.All(context.Background(), []string{"/a.mp4", "/b.mp4", "/c.mp4"}, 2)
	require.NoError(t, err)
	assert.Len(t, infos, 3)
	assert.True(t, infos["/b.mp4"].HasAudio)
}

func TestProbeMissingBinary(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing-ffprobe"), 0)
	_, err := p.Probe(context.Background(), "/a.mp4")
	require.Error(t, err)
}

func TestSources(t *testing.T) {
	p := New(fakeProbe(t, sampleOutput), 0)
	src, err := p.Sources(context.Background(), []string{"/a.mp4", "/b.mp4"})
	require.NoError(t, err)
	require.Len(t, src, 2)
	assert.Equal(t, int64(12012), src["/a.mp4"].DurationMs)
	assert.True(t, src["/a.mp4"].HasAudio)
	assert.Equal(t, 1920, src["/a.mp4"].Width)
	assert.Equal(t, 1080, src["/a.mp4"].Height)
}

func TestSourceInfoSkipsNil(t *testing.T) {
	out := SourceInfo(map[string]*Info{"/a.mp4": nil, "/b.mp4": {DurationMs: 5, HasAudio: false, Width: 1280, Height: 720}})
	assert.Len(t, out, 1)
	assert.Equal(t, graph.SourceInfo{DurationMs: 5, Width: 1280, Height: 720}, out["/b.mp4"])
}
