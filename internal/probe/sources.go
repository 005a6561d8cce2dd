// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"

	"github.com/ManuGH/vcompose/internal/graph"
)

// DefaultConcurrency caps parallel ffprobe processes in Sources.
const DefaultConcurrency = 4

// SourceInfo converts probe results into the metadata the graph builder
// consumes.
func SourceInfo(infos map[string]*Info) map[string]graph.SourceInfo {
	out := make(map[string]graph.SourceInfo, len(infos))
	for path, info := range infos {
		if info == nil {
			continue
		}
		out[path] = graph.SourceInfo{
			DurationMs: info.DurationMs,
			HasAudio:   info.HasAudio,
			Width:      info.Width,
			Height:     info.Height,
		}
	}
	return out
}

// Sources probes every path and returns builder metadata for them.
func (p *Prober) Sources(ctx context.Context, paths []string) (map[string]graph.SourceInfo, error) {
	infos, err := p.All(ctx, paths, DefaultConcurrency)
	if err != nil {
		return nil, err
	}
	return SourceInfo(infos), nil
}
