// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import "errors"

var (
	// ErrNoVideoTracks is returned for timelines without any video track.
	ErrNoVideoTracks = errors.New("timeline has no video tracks")
	// ErrEmptyTrack is returned for a video track without clips.
	ErrEmptyTrack = errors.New("video track has no clips")
	// ErrInvalidTimeline wraps timeline validation failures.
	ErrInvalidTimeline = errors.New("invalid timeline")
)
