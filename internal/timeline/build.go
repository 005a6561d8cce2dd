// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"
	"slices"
)

// NewFromVideo returns a single-track timeline playing the whole source.
func NewFromVideo(path string) (Timeline, error) {
	return NewFromVideos([]string{path})
}

// NewFromVideos places each source back to back on one track, joined by
// default cross-fades.
func NewFromVideos(paths []string) (Timeline, error) {
	if len(paths) == 0 {
		return Timeline{}, fmt.Errorf("%w: no sources", ErrMissingSource)
	}
	track := VideoTrack{ID: NewID()}
	for _, p := range paths {
		c, err := NewVideoClip(p)
		if err != nil {
			return Timeline{}, err
		}
		track.Clips = append(track.Clips, c)
	}
	for i := 1; i < len(track.Clips); i++ {
		track.Transitions = append(track.Transitions, DefaultTransition())
	}
	return Timeline{VideoTracks: []VideoTrack{track}}, nil
}

// SplitAtCuts splits clip at the given source positions. Cuts outside the
// open interval (StartMs, EndMs) and duplicates are ignored. Each segment
// keeps every other property of the clip and gets a fresh ID; only the first
// segment keeps the placement offset.
func SplitAtCuts(clip VideoClip, cutsMs []int64) []VideoClip {
	cuts := slices.Clone(cutsMs)
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)

	var segments []VideoClip
	start := clip.StartMs
	for _, cut := range cuts {
		if cut <= start || (clip.HasEnd() && cut >= clip.EndMs) {
			continue
		}
		seg := clip.clone()
		seg.ID = NewID()
		seg.StartMs, seg.EndMs = start, cut
		if len(segments) > 0 {
			seg.StartAtMs = 0
		}
		segments = append(segments, seg)
		start = cut
	}
	if len(segments) == 0 {
		return []VideoClip{clip.clone()}
	}
	last := clip.clone()
	last.ID = NewID()
	last.StartMs = start
	last.StartAtMs = 0
	return append(segments, last)
}

// SplitTrackAtCuts replaces the track's clips with their cut segments and
// inserts default transitions between every segment.
func SplitTrackAtCuts(track VideoTrack, cutsMs []int64) VideoTrack {
	out := VideoTrack{ID: track.ID}
	for _, c := range track.Clips {
		out.Clips = append(out.Clips, SplitAtCuts(c, cutsMs)...)
	}
	for i := 1; i < len(out.Clips); i++ {
		out.Transitions = append(out.Transitions, DefaultTransition())
	}
	return out
}
