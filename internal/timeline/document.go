// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk and over-the-wire form of a Timeline.
type Document struct {
	VideoTracks  []TrackDoc      `yaml:"video_tracks" json:"video_tracks"`
	AudioTracks  []AudioTrackDoc `yaml:"audio_tracks,omitempty" json:"audio_tracks,omitempty"`
	TextOverlays []OverlayDoc    `yaml:"text_overlays,omitempty" json:"text_overlays,omitempty"`
}

// TrackDoc describes one video track.
type TrackDoc struct {
	ID          string          `yaml:"id,omitempty" json:"id,omitempty"`
	Clips       []ClipDoc       `yaml:"clips" json:"clips"`
	Transitions []TransitionDoc `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// ClipDoc describes one video clip. Pointer fields distinguish "unset" from
// zero so defaults can be applied.
type ClipDoc struct {
	ID           string   `yaml:"id,omitempty" json:"id,omitempty"`
	Source       string   `yaml:"source" json:"source"`
	StartMs      int64    `yaml:"start_ms,omitempty" json:"start_ms,omitempty"`
	EndMs        int64    `yaml:"end_ms,omitempty" json:"end_ms,omitempty"`
	StartAtMs    int64    `yaml:"start_at_ms,omitempty" json:"start_at_ms,omitempty"`
	Speed        float64  `yaml:"speed,omitempty" json:"speed,omitempty"`
	CropRatio    *float64 `yaml:"crop_ratio,omitempty" json:"crop_ratio,omitempty"`
	Rotation     int      `yaml:"rotation,omitempty" json:"rotation,omitempty"`
	Filter       string   `yaml:"filter,omitempty" json:"filter,omitempty"`
	Effects      []string `yaml:"effects,omitempty" json:"effects,omitempty"`
	IncludeAudio *bool    `yaml:"include_audio,omitempty" json:"include_audio,omitempty"`
	Volume       *float64 `yaml:"volume,omitempty" json:"volume,omitempty"`
}

// TransitionDoc describes a transition between two clips.
type TransitionDoc struct {
	Type       string `yaml:"type,omitempty" json:"type,omitempty"`
	DurationMs int64  `yaml:"duration_ms,omitempty" json:"duration_ms,omitempty"`
}

// AudioTrackDoc describes an audio-only track.
type AudioTrackDoc struct {
	ID    string         `yaml:"id,omitempty" json:"id,omitempty"`
	Clips []AudioClipDoc `yaml:"clips" json:"clips"`
}

// AudioClipDoc describes an audio-only clip.
type AudioClipDoc struct {
	ID        string   `yaml:"id,omitempty" json:"id,omitempty"`
	Source    string   `yaml:"source" json:"source"`
	StartMs   int64    `yaml:"start_ms,omitempty" json:"start_ms,omitempty"`
	EndMs     int64    `yaml:"end_ms,omitempty" json:"end_ms,omitempty"`
	StartAtMs int64    `yaml:"start_at_ms,omitempty" json:"start_at_ms,omitempty"`
	Speed     float64  `yaml:"speed,omitempty" json:"speed,omitempty"`
	Volume    *float64 `yaml:"volume,omitempty" json:"volume,omitempty"`
}

// OverlayDoc describes a text overlay.
type OverlayDoc struct {
	ID       string   `yaml:"id,omitempty" json:"id,omitempty"`
	Text     string   `yaml:"text" json:"text"`
	StartMs  int64    `yaml:"start_ms,omitempty" json:"start_ms,omitempty"`
	EndMs    int64    `yaml:"end_ms,omitempty" json:"end_ms,omitempty"`
	X        *float64 `yaml:"x,omitempty" json:"x,omitempty"`
	Y        *float64 `yaml:"y,omitempty" json:"y,omitempty"`
	FontSize int      `yaml:"font_size,omitempty" json:"font_size,omitempty"`
	Color    string   `yaml:"color,omitempty" json:"color,omitempty"`
}

// Format selects the document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath infers the document format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported timeline file extension %q (expected .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// Decode parses a document strictly: unknown fields are rejected.
func Decode(r io.Reader, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return Document{}, errors.New("timeline document is empty")
			}
			return Document{}, fmt.Errorf("parse timeline yaml: %w", err)
		}
		var extra any
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return Document{}, errors.New("timeline document must contain exactly one yaml document")
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("parse timeline json: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("unsupported timeline format %q", format)
	}
	return doc, nil
}

// LoadFile reads and converts a timeline document from disk.
func LoadFile(path string) (Timeline, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return Timeline{}, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return Timeline{}, fmt.Errorf("read timeline: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return Timeline{}, err
	}
	return doc.Timeline()
}

// Timeline converts the document into a validated Timeline.
func (d Document) Timeline() (Timeline, error) {
	var tl Timeline
	for ti, td := range d.VideoTracks {
		track := VideoTrack{ID: td.ID}
		if track.ID == "" {
			track.ID = NewID()
		}
		for ci, cd := range td.Clips {
			c, err := cd.clip()
			if err != nil {
				return Timeline{}, fmt.Errorf("video_tracks[%d].clips[%d]: %w", ti, ci, err)
			}
			track.Clips = append(track.Clips, c)
		}
		for xi, xd := range td.Transitions {
			tt, err := ParseTransitionType(xd.Type)
			if err != nil {
				return Timeline{}, fmt.Errorf("video_tracks[%d].transitions[%d]: %w", ti, xi, err)
			}
			tr, err := NewTransition(tt, xd.DurationMs)
			if err != nil {
				return Timeline{}, fmt.Errorf("video_tracks[%d].transitions[%d]: %w", ti, xi, err)
			}
			track.Transitions = append(track.Transitions, tr)
		}
		tl.VideoTracks = append(tl.VideoTracks, track)
	}
	for ti, td := range d.AudioTracks {
		track := AudioTrack{ID: td.ID}
		if track.ID == "" {
			track.ID = NewID()
		}
		for ci, cd := range td.Clips {
			opts := []AudioClipOption{
				WithAudioTrim(cd.StartMs, cd.EndMs),
				WithAudioPlacement(cd.StartAtMs),
				WithAudioSpeed(cd.Speed),
			}
			if cd.Volume != nil {
				opts = append(opts, WithAudioVolume(*cd.Volume))
			}
			c, err := NewAudioClip(cd.Source, opts...)
			if err != nil {
				return Timeline{}, fmt.Errorf("audio_tracks[%d].clips[%d]: %w", ti, ci, err)
			}
			if cd.ID != "" {
				c.ID = cd.ID
			}
			track.Clips = append(track.Clips, c)
		}
		tl.AudioTracks = append(tl.AudioTracks, track)
	}
	for oi, od := range d.TextOverlays {
		opts := []TextOverlayOption{WithWindow(od.StartMs, od.EndMs)}
		if od.X != nil || od.Y != nil {
			x, y := 0.1, 0.1
			if od.X != nil {
				x = *od.X
			}
			if od.Y != nil {
				y = *od.Y
			}
			opts = append(opts, WithPosition(x, y))
		}
		if od.FontSize != 0 {
			opts = append(opts, WithFontSize(od.FontSize))
		}
		if od.Color != "" {
			col, err := ParseColor(od.Color)
			if err != nil {
				return Timeline{}, fmt.Errorf("text_overlays[%d]: %w", oi, err)
			}
			opts = append(opts, WithColor(col))
		}
		o, err := NewTextOverlay(od.Text, opts...)
		if err != nil {
			return Timeline{}, fmt.Errorf("text_overlays[%d]: %w", oi, err)
		}
		if od.ID != "" {
			o.ID = od.ID
		}
		tl.TextOverlays = append(tl.TextOverlays, o)
	}
	if err := tl.Validate(); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}

func (cd ClipDoc) clip() (VideoClip, error) {
	filter, err := ParseFilter(cd.Filter)
	if err != nil {
		return VideoClip{}, err
	}
	opts := []VideoClipOption{
		WithTrim(cd.StartMs, cd.EndMs),
		WithPlacement(cd.StartAtMs),
		WithSpeed(cd.Speed),
		WithRotation(cd.Rotation),
		WithFilter(filter),
	}
	if cd.ID != "" {
		opts = append(opts, WithClipID(cd.ID))
	}
	if cd.CropRatio != nil {
		opts = append(opts, WithCrop(*cd.CropRatio))
	}
	for _, name := range cd.Effects {
		e, err := ParseEffect(name)
		if err != nil {
			return VideoClip{}, err
		}
		opts = append(opts, WithEffects(e))
	}
	if cd.IncludeAudio != nil && !*cd.IncludeAudio {
		opts = append(opts, WithoutAudio())
	}
	if cd.Volume != nil {
		opts = append(opts, WithVolume(*cd.Volume))
	}
	return NewVideoClip(cd.Source, opts...)
}

// DocumentFrom renders tl back into its document form.
func DocumentFrom(tl Timeline) Document {
	var d Document
	for _, tr := range tl.VideoTracks {
		td := TrackDoc{ID: tr.ID}
		for _, c := range tr.Clips {
			cd := ClipDoc{
				ID:        c.ID,
				Source:    c.SourcePath,
				StartMs:   c.StartMs,
				EndMs:     c.EndMs,
				StartAtMs: c.StartAtMs,
				Speed:     c.Speed,
				Rotation:  c.RotationDegrees,
			}
			if c.Filter != FilterNone {
				cd.Filter = c.Filter.String()
			}
			if c.Crop != nil {
				r := c.Crop.Ratio
				cd.CropRatio = &r
			}
			for _, e := range c.Effects {
				cd.Effects = append(cd.Effects, e.String())
			}
			if !c.IncludeAudio {
				f := false
				cd.IncludeAudio = &f
			}
			if c.Volume != 1 {
				v := c.Volume
				cd.Volume = &v
			}
			td.Clips = append(td.Clips, cd)
		}
		for _, x := range tr.Transitions {
			td.Transitions = append(td.Transitions, TransitionDoc{Type: x.Type.String(), DurationMs: x.DurationMs})
		}
		d.VideoTracks = append(d.VideoTracks, td)
	}
	for _, tr := range tl.AudioTracks {
		td := AudioTrackDoc{ID: tr.ID}
		for _, c := range tr.Clips {
			cd := AudioClipDoc{ID: c.ID, Source: c.SourcePath, StartMs: c.StartMs, EndMs: c.EndMs, StartAtMs: c.StartAtMs, Speed: c.Speed}
			if c.Volume != 1 {
				v := c.Volume
				cd.Volume = &v
			}
			td.Clips = append(td.Clips, cd)
		}
		d.AudioTracks = append(d.AudioTracks, td)
	}
	for _, o := range tl.TextOverlays {
		x, y := o.X, o.Y
		d.TextOverlays = append(d.TextOverlays, OverlayDoc{
			ID: o.ID, Text: o.Text, StartMs: o.StartMs, EndMs: o.EndMs,
			X: &x, Y: &y, FontSize: o.FontSize, Color: o.Color.String(),
		})
	}
	return d
}
