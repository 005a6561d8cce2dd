// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package timeline holds the declarative editing plan: tracks of clips,
// transitions between them, text overlays and audio-only tracks.
//
// Values in this package are treated as immutable once handed to a build.
// Edits produce a new Timeline (or a Clone) instead of mutating in place.
package timeline

// Timeline is the full editing plan of one session.
type Timeline struct {
	VideoTracks  []VideoTrack
	AudioTracks  []AudioTrack
	TextOverlays []TextOverlay
}

// VideoTrack is an ordered sequence of clips. Transitions apply between
// consecutive clips; when fewer than len(Clips)-1 are given the last one is
// reused for the remaining pairs.
type VideoTrack struct {
	ID          string
	Clips       []VideoClip
	Transitions []Transition
}

// AudioTrack carries audio-only clips that are mixed into the output.
type AudioTrack struct {
	ID    string
	Clips []AudioClip
}

// Crop requests a centered crop to the given width/height ratio.
type Crop struct {
	Ratio float64
}

// VideoClip is a trimmed, transformed reference into one source file.
// EndMs == 0 means the clip plays to the end of the source.
type VideoClip struct {
	ID              string
	SourcePath      string
	StartMs         int64
	EndMs           int64
	StartAtMs       int64
	Speed           float64
	Crop            *Crop
	RotationDegrees int
	Filter          Filter
	Effects         []Effect
	IncludeAudio    bool
	Volume          float64
}

// AudioClip is a trimmed reference into an audio source placed on the timeline.
type AudioClip struct {
	ID         string
	SourcePath string
	StartMs    int64
	EndMs      int64
	StartAtMs  int64
	Speed      float64
	Volume     float64
}

// TextOverlay draws Text over the composite between StartMs and EndMs.
// X and Y are fractions of the frame size. EndMs == 0 keeps the text until
// the composite ends.
type TextOverlay struct {
	ID       string
	Text     string
	StartMs  int64
	EndMs    int64
	X        float64
	Y        float64
	FontSize int
	Color    Color
}

// Transition blends two consecutive clips on a track.
type Transition struct {
	Type       TransitionType
	DurationMs int64
}

// DefaultTransitionMs is the cross-fade length used when none is specified.
const DefaultTransitionMs = 350

// DefaultTransition returns a 350ms cross-fade.
func DefaultTransition() Transition {
	return Transition{Type: TransitionCrossFade, DurationMs: DefaultTransitionMs}
}

// HasEnd reports whether the clip has an explicit trim end.
func (c VideoClip) HasEnd() bool { return c.EndMs > 0 }

// EffectiveSpeed returns Speed with the zero value mapped to 1.
func (c VideoClip) EffectiveSpeed() float64 { return effectiveSpeed(c.Speed) }

// DurationMs is the clip's length on the timeline after speed scaling.
// Open-ended clips report 0 since the source length is unknown here.
func (c VideoClip) DurationMs() int64 {
	return scaledDuration(c.StartMs, c.EndMs, c.Speed)
}

// HasEnd reports whether the clip has an explicit trim end.
func (c AudioClip) HasEnd() bool { return c.EndMs > 0 }

// EffectiveSpeed returns Speed with the zero value mapped to 1.
func (c AudioClip) EffectiveSpeed() float64 { return effectiveSpeed(c.Speed) }

// DurationMs is the clip's length on the timeline after speed scaling.
func (c AudioClip) DurationMs() int64 {
	return scaledDuration(c.StartMs, c.EndMs, c.Speed)
}

// TransitionAt returns the transition between clip i and clip i+1, if any.
func (t VideoTrack) TransitionAt(i int) (Transition, bool) {
	if len(t.Transitions) == 0 {
		return Transition{}, false
	}
	if i < len(t.Transitions) {
		return t.Transitions[i], true
	}
	return t.Transitions[len(t.Transitions)-1], true
}

// Empty reports whether the timeline has nothing to render.
func (t Timeline) Empty() bool {
	return len(t.VideoTracks) == 0
}

// SourcePaths lists every referenced source once, in first-seen order
// (video tracks first, then audio tracks).
func (t Timeline) SourcePaths() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, tr := range t.VideoTracks {
		for _, c := range tr.Clips {
			add(c.SourcePath)
		}
	}
	for _, tr := range t.AudioTracks {
		for _, c := range tr.Clips {
			add(c.SourcePath)
		}
	}
	return out
}

func effectiveSpeed(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}

func scaledDuration(startMs, endMs int64, speed float64) int64 {
	if endMs <= 0 {
		return 0
	}
	d := endMs - startMs
	if d < 0 {
		return 0
	}
	return int64(float64(d) / effectiveSpeed(speed))
}
