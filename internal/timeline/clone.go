// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"
	"slices"
)

// Clone returns a deep copy that shares no slices or pointers with t.
func (t Timeline) Clone() Timeline {
	out := Timeline{
		VideoTracks:  make([]VideoTrack, len(t.VideoTracks)),
		AudioTracks:  make([]AudioTrack, len(t.AudioTracks)),
		TextOverlays: slices.Clone(t.TextOverlays),
	}
	for i, tr := range t.VideoTracks {
		clips := make([]VideoClip, len(tr.Clips))
		for j, c := range tr.Clips {
			clips[j] = c.clone()
		}
		out.VideoTracks[i] = VideoTrack{
			ID:          tr.ID,
			Clips:       clips,
			Transitions: slices.Clone(tr.Transitions),
		}
	}
	for i, tr := range t.AudioTracks {
		out.AudioTracks[i] = AudioTrack{ID: tr.ID, Clips: slices.Clone(tr.Clips)}
	}
	return out
}

func (c VideoClip) clone() VideoClip {
	if c.Crop != nil {
		crop := *c.Crop
		c.Crop = &crop
	}
	c.Effects = slices.Clone(c.Effects)
	return c
}

// MapSources returns a copy of t with every clip source replaced by fn's
// result. The first error aborts the mapping.
func (t Timeline) MapSources(fn func(string) (string, error)) (Timeline, error) {
	out := t.Clone()
	for i := range out.VideoTracks {
		for j := range out.VideoTracks[i].Clips {
			c := &out.VideoTracks[i].Clips[j]
			p, err := fn(c.SourcePath)
			if err != nil {
				return Timeline{}, fmt.Errorf("clip %s: %w", c.ID, err)
			}
			c.SourcePath = p
		}
	}
	for i := range out.AudioTracks {
		for j := range out.AudioTracks[i].Clips {
			c := &out.AudioTracks[i].Clips[j]
			p, err := fn(c.SourcePath)
			if err != nil {
				return Timeline{}, fmt.Errorf("audio clip %s: %w", c.ID, err)
			}
			c.SourcePath = p
		}
	}
	return out, nil
}
