// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
video_tracks:
  - id: main
    clips:
      - id: intro
        source: /media/intro.mp4
        start_ms: 1000
        end_ms: 4000
        filter: sepia
        effects: [zoom_in]
      - source: /media/body.mp4
        end_ms: 3000
        include_audio: false
        crop_ratio: 1.0
    transitions:
      - type: wipe_left
        duration_ms: 500
audio_tracks:
  - clips:
      - source: /media/music.m4a
        volume: 0.4
text_overlays:
  - text: "Hello: world"
    x: 0.5
    color: "#80FFFFFF"
`

func TestDecodeYAML(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleYAML), FormatYAML)
	require.NoError(t, err)

	tl, err := doc.Timeline()
	require.NoError(t, err)

	require.Len(t, tl.VideoTracks, 1)
	tr := tl.VideoTracks[0]
	assert.Equal(t, "main", tr.ID)
	require.Len(t, tr.Clips, 2)
	assert.Equal(t, "intro", tr.Clips[0].ID)
	assert.Equal(t, FilterSepia, tr.Clips[0].Filter)
	assert.Equal(t, []Effect{EffectZoomIn}, tr.Clips[0].Effects)
	assert.True(t, tr.Clips[0].IncludeAudio)
	assert.False(t, tr.Clips[1].IncludeAudio)
	require.NotNil(t, tr.Clips[1].Crop)
	assert.Equal(t, TransitionWipeLeft, tr.Transitions[0].Type)
	assert.Equal(t, int64(500), tr.Transitions[0].DurationMs)

	require.Len(t, tl.AudioTracks, 1)
	assert.Equal(t, 0.4, tl.AudioTracks[0].Clips[0].Volume)

	require.Len(t, tl.TextOverlays, 1)
	o := tl.TextOverlays[0]
	assert.Equal(t, 0.5, o.X)
	assert.Equal(t, 0.1, o.Y)
	assert.Equal(t, uint8(0x80), o.Color.Alpha())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("video_tracks: []\nbogus: 1\n"), FormatYAML)
	require.Error(t, err)

	_, err = Decode(strings.NewReader(`{"video_tracks":[],"bogus":1}`), FormatJSON)
	require.Error(t, err)
}

func TestDecodeRejectsMultipleDocuments(t *testing.T) {
	_, err := Decode(strings.NewReader("video_tracks: []\n---\nvideo_tracks: []\n"), FormatYAML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestDecodeRejectsNonFiniteNumbers(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"overlay x", "text_overlays:\n  - text: hi\n    x: .nan\n", "text_overlays[0]"},
		{"overlay y", "text_overlays:\n  - text: hi\n    y: .inf\n", "text_overlays[0]"},
		{"clip volume", "video_tracks:\n  - clips:\n      - source: /a.mp4\n        volume: .nan\n", "video_tracks[0].clips[0]"},
		{"crop ratio", "video_tracks:\n  - clips:\n      - source: /a.mp4\n        crop_ratio: .inf\n", "video_tracks[0].clips[0]"},
		{"audio volume", "audio_tracks:\n  - clips:\n      - source: /a.m4a\n        volume: -.inf\n", "audio_tracks[0].clips[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(strings.NewReader(tt.doc), FormatYAML)
			require.NoError(t, err)
			_, err = doc.Timeline()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestDocumentTimelineReportsPath(t *testing.T) {
	doc := Document{VideoTracks: []TrackDoc{{Clips: []ClipDoc{{Source: "/a.mp4", StartMs: 5, EndMs: 2}}}}}
	_, err := doc.Timeline()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTrim)
	assert.Contains(t, err.Error(), "video_tracks[0].clips[0]")
}

func TestDocumentFromRoundTripsSemantics(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleYAML), FormatYAML)
	require.NoError(t, err)
	tl, err := doc.Timeline()
	require.NoError(t, err)

	again, err := DocumentFrom(tl).Timeline()
	require.NoError(t, err)
	assert.Equal(t, tl, again)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	tl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, tl.VideoTracks[0].Clips, 2)

	_, err = LoadFile(filepath.Join(dir, "edit.toml"))
	require.Error(t, err)
}
