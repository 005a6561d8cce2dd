// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"fmt"

	"github.com/rs/zerolog"

	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/timeline"
)

// SourceInfo is probed metadata about one source file.
type SourceInfo struct {
	DurationMs int64
	HasAudio   bool
	Width      int
	Height     int
}

// Canvas normalizes joined clips to a common frame size, rate and pixel
// format so clips from different sources can be fed to xfade/concat.
// A zero size keeps each clip's own size.
type Canvas struct {
	Width  int
	Height int
	FPS    int
}

// Option configures a Builder.
type Option func(*Builder)

// WithSourceInfo supplies probed source metadata. Open-ended clips get their
// duration from it and clips whose source has no audio stream get no audio
// chain. Sources missing from the map are assumed to carry audio.
func WithSourceInfo(info map[string]SourceInfo) Option {
	return func(b *Builder) { b.sources = info }
}

// WithFontFile sets the font used by text overlays.
func WithFontFile(path string) Option {
	return func(b *Builder) { b.fontFile = path }
}

// WithCanvas normalizes clips of multi-clip tracks to c before they are
// joined. Single-clip tracks are left untouched.
func WithCanvas(c Canvas) Option {
	return func(b *Builder) { b.canvas = &c }
}

// WithLogger overrides the builder's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// Builder translates timelines into graphs. It holds no per-build state and
// is safe for concurrent use.
type Builder struct {
	sources  map[string]SourceInfo
	fontFile string
	canvas   *Canvas
	logger   zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: xlog.WithComponent("graph")}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// With returns a copy of b with extra options applied.
func (b *Builder) With(opts ...Option) *Builder {
	cp := *b
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// build holds the state of a single Build call.
type build struct {
	*Builder
	g      *Graph
	inputs map[string]int
}

type trackOut struct {
	video      NodeID
	audio      NodeID
	startMs    int64
	durationMs int64
}

// Build translates tl into a graph. Structural problems are reported before
// anything else happens.
func (b *Builder) Build(tl timeline.Timeline) (*Graph, error) {
	if len(tl.VideoTracks) == 0 {
		return nil, ErrNoVideoTracks
	}
	for i, tr := range tl.VideoTracks {
		if len(tr.Clips) == 0 {
			return nil, fmt.Errorf("%w: track %d", ErrEmptyTrack, i)
		}
	}
	if err := tl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTimeline, err)
	}

	st := &build{Builder: b, g: newGraph(), inputs: make(map[string]int)}

	var audio []NodeID
	var base trackOut
	for i, tr := range tl.VideoTracks {
		out := st.videoTrack(tr)
		if out.audio != NoNode {
			audio = append(audio, out.audio)
		}
		if i == 0 {
			base = out
			continue
		}
		base = st.overlayTrack(base, out)
	}

	for _, tr := range tl.AudioTracks {
		for _, c := range tr.Clips {
			audio = append(audio, st.audioClip(c))
		}
	}

	video := base.video
	if len(tl.TextOverlays) > 0 {
		video = st.textOverlays(video, tl.TextOverlays, base.durationMs)
	}

	st.g.VideoSink = video
	st.g.DurationMs = base.durationMs
	st.g.AudioSink = st.mix(audio)

	b.logger.Debug().
		Str(xlog.FieldEvent, "graph.built").
		Int("inputs", len(st.g.Inputs)).
		Int("nodes", len(st.g.Nodes)).
		Bool("audio", st.g.HasAudio()).
		Int64(xlog.FieldDurationMs, st.g.DurationMs).
		Msg("filter graph built")

	return st.g, nil
}

// input registers path and returns its stable input index.
func (st *build) input(path string) int {
	if idx, ok := st.inputs[path]; ok {
		return idx
	}
	idx := len(st.g.Inputs)
	st.inputs[path] = idx
	st.g.Inputs = append(st.g.Inputs, path)
	return idx
}

func (st *build) sourceHasAudio(path string) bool {
	info, ok := st.sources[path]
	return !ok || info.HasAudio
}

// clipDuration resolves the timeline length of a trim window, falling back to
// the probed source length for open-ended clips.
func (st *build) clipDuration(path string, startMs, endMs int64, speed float64) int64 {
	if endMs <= 0 {
		info, ok := st.sources[path]
		if !ok || info.DurationMs <= startMs {
			return 0
		}
		endMs = info.DurationMs
	}
	if speed <= 0 {
		speed = 1
	}
	return int64(float64(endMs-startMs) / speed)
}

// SourceCanvas derives a canvas from the probed size of the first clip's
// source, as it appears after the clip's rotation. ok is false when the size
// is unknown.
func (b *Builder) SourceCanvas(tl timeline.Timeline, fps int) (Canvas, bool) {
	if len(tl.VideoTracks) == 0 || len(tl.VideoTracks[0].Clips) == 0 {
		return Canvas{}, false
	}
	first := tl.VideoTracks[0].Clips[0]
	info, ok := b.sources[first.SourcePath]
	if !ok || info.Width <= 0 || info.Height <= 0 {
		return Canvas{}, false
	}
	w, h := info.Width, info.Height
	if r := ((first.RotationDegrees % 360) + 360) % 360; r == 90 || r == 270 {
		w, h = h, w
	}
	return Canvas{Width: w &^ 1, Height: h &^ 1, FPS: fps}, true
}

// videoTrack builds every clip of tr and joins them. When any clip carries
// audio, the others get silence of their own length so the audio fold pairs
// with the video fold clip for clip.
func (st *build) videoTrack(tr timeline.VideoTrack) trackOut {
	clips := make([]NodeID, len(tr.Clips))
	durations := make([]int64, len(tr.Clips))
	audible := make([]bool, len(tr.Clips))
	anyAudio := false
	for i, c := range tr.Clips {
		audible[i] = c.IncludeAudio && st.sourceHasAudio(c.SourcePath)
		anyAudio = anyAudio || audible[i]
	}
	normalize := len(tr.Clips) > 1
	var audio []NodeID
	for i, c := range tr.Clips {
		clips[i] = st.videoClip(c, normalize)
		durations[i] = st.clipDuration(c.SourcePath, c.StartMs, c.EndMs, c.Speed)
		switch {
		case audible[i]:
			audio = append(audio, st.videoClipAudio(c))
		case anyAudio:
			audio = append(audio, st.silence(durations[i], c.StartAtMs))
		}
	}

	out := trackOut{audio: NoNode, startMs: tr.Clips[0].StartAtMs}
	switch {
	case len(clips) == 1:
		out.video, out.durationMs = clips[0], durations[0]
	case len(tr.Transitions) > 0:
		out.video, out.durationMs = st.xfadeFold(tr, clips, durations)
	default:
		out.video = st.g.add(Video, refs(clips, Video), fmt.Sprintf("concat=n=%d:v=1:a=0", len(clips)))
		for _, d := range durations {
			out.durationMs += d
		}
	}

	switch {
	case len(audio) == 1:
		out.audio = audio[0]
	case len(audio) > 1 && len(tr.Transitions) > 0:
		out.audio = st.acrossfadeFold(tr, audio)
	case len(audio) > 1:
		out.audio = st.g.add(Audio, refs(audio, Audio), fmt.Sprintf("concat=n=%d:v=0:a=1", len(audio)))
	}
	return out
}

// xfadeFold joins clips pairwise from the left. The offset of each xfade is
// clamped at zero so a clip shorter than its transition still blends.
func (st *build) xfadeFold(tr timeline.VideoTrack, clips []NodeID, durations []int64) (NodeID, int64) {
	cur := clips[0]
	running := durations[0]
	for i := 1; i < len(clips); i++ {
		t, _ := tr.TransitionAt(i - 1)
		offset := max(0, running-t.DurationMs)
		cur = st.g.add(Video,
			[]Ref{NodeRef(cur, Video), NodeRef(clips[i], Video)},
			fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s", t.Type.XFadeName(), secs(t.DurationMs), secs(offset)),
		)
		running = max(0, running+durations[i]-t.DurationMs)
	}
	return cur, running
}

func (st *build) acrossfadeFold(tr timeline.VideoTrack, audio []NodeID) NodeID {
	cur := audio[0]
	for i := 1; i < len(audio); i++ {
		t, _ := tr.TransitionAt(i - 1)
		cur = st.g.add(Audio,
			[]Ref{NodeRef(cur, Audio), NodeRef(audio[i], Audio)},
			"acrossfade=d="+secs(t.DurationMs),
		)
	}
	return cur
}

// overlayTrack composites top over base, visible only during top's window.
func (st *build) overlayTrack(base, top trackOut) trackOut {
	enable := fmt.Sprintf("gte(t,%s)", secs(top.startMs))
	end := top.startMs + top.durationMs
	if top.durationMs > 0 {
		enable = fmt.Sprintf("between(t,%s,%s)", secs(top.startMs), secs(end))
	}
	id := st.g.add(Video,
		[]Ref{NodeRef(base.video, Video), NodeRef(top.video, Video)},
		fmt.Sprintf("overlay=enable='%s'", enable),
	)
	return trackOut{
		video:      id,
		audio:      base.audio,
		startMs:    base.startMs,
		durationMs: max(base.durationMs, end),
	}
}

func (st *build) mix(audio []NodeID) NodeID {
	switch len(audio) {
	case 0:
		return NoNode
	case 1:
		return audio[0]
	default:
		return st.g.add(Audio, refs(audio, Audio),
			fmt.Sprintf("amix=inputs=%d:duration=longest:dropout_transition=0", len(audio)))
	}
}

func refs(ids []NodeID, kind Kind) []Ref {
	out := make([]Ref, len(ids))
	for i, id := range ids {
		out[i] = NodeRef(id, kind)
	}
	return out
}
