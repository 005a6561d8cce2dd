// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"fmt"
	"math"

	"github.com/ManuGH/vcompose/internal/timeline"
)

// atempo accepts factors in [0.5, 2.0] on every ffmpeg release we target.
const (
	minTempoStep  = 0.5
	maxTempoStep  = 2.0
	volumeEpsilon = 0.001

	silenceSampleRate = 48000
)

func (st *build) videoClipAudio(c timeline.VideoClip) NodeID {
	idx := st.input(c.SourcePath)
	return st.g.add(Audio, []Ref{SourceRef(idx, Audio)},
		audioChain(c.StartMs, c.EndMs, c.StartAtMs, c.EffectiveSpeed(), c.Volume)...)
}

func (st *build) audioClip(c timeline.AudioClip) NodeID {
	idx := st.input(c.SourcePath)
	return st.g.add(Audio, []Ref{SourceRef(idx, Audio)},
		audioChain(c.StartMs, c.EndMs, c.StartAtMs, c.EffectiveSpeed(), c.Volume)...)
}

// silence stands in for a clip without audio: a stereo null source cut to
// the clip's length. An unknown length still yields a finite stream.
func (st *build) silence(durationMs, startAtMs int64) NodeID {
	chain := []string{
		fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", silenceSampleRate),
		"atrim=duration=" + secs(max(durationMs, 1)),
	}
	if startAtMs > 0 {
		chain = append(chain, fmt.Sprintf("adelay=delays=%d:all=1", startAtMs))
	}
	return st.g.add(Audio, nil, chain...)
}

func audioChain(startMs, endMs, startAtMs int64, speed, volume float64) []string {
	var chain []string
	if f := trimFilter("atrim", startMs, endMs); f != "" {
		chain = append(chain, f)
	}
	chain = append(chain, "asetpts=PTS-STARTPTS")
	for _, step := range TempoSteps(speed) {
		chain = append(chain, "atempo="+num(step))
	}
	if math.Abs(volume-1) > volumeEpsilon {
		chain = append(chain, "volume="+num(volume))
	}
	if startAtMs > 0 {
		chain = append(chain, fmt.Sprintf("adelay=delays=%d:all=1", startAtMs))
	}
	return chain
}

// TempoSteps factors speed into atempo steps within [0.5, 2.0] whose
// product equals speed. A speed of 1 (or an invalid one) needs no steps.
func TempoSteps(speed float64) []float64 {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) || speed == 1 {
		return nil
	}
	var steps []float64
	s := speed
	for s > maxTempoStep {
		steps = append(steps, maxTempoStep)
		s /= maxTempoStep
	}
	for s < minTempoStep {
		steps = append(steps, minTempoStep)
		s /= minTempoStep
	}
	if math.Abs(s-1) > 1e-9 {
		steps = append(steps, s)
	}
	return steps
}
