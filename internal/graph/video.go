// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"fmt"
	"math"

	"github.com/ManuGH/vcompose/internal/timeline"
)

// minCropRatio keeps degenerate ratios from collapsing the frame.
const minCropRatio = 0.1

func (st *build) videoClip(c timeline.VideoClip, normalize bool) NodeID {
	idx := st.input(c.SourcePath)
	return st.g.add(Video, []Ref{SourceRef(idx, Video)}, st.videoChain(c, normalize)...)
}

// videoChain lists the clip's filters in application order, skipping every
// stage that would not change the stream. normalize applies the canvas.
func (st *build) videoChain(c timeline.VideoClip, normalize bool) []string {
	var chain []string
	if f := trimFilter("trim", c.StartMs, c.EndMs); f != "" {
		chain = append(chain, f)
	}
	chain = append(chain, "setpts=PTS-STARTPTS")

	if s := c.EffectiveSpeed(); s != 1 {
		chain = append(chain, "setpts=PTS/"+num(s))
	}
	if c.Crop != nil {
		chain = append(chain, cropFilter(c.Crop.Ratio))
	}
	chain = append(chain, rotationFilters(c.RotationDegrees)...)
	if f := c.Filter.Expr(); f != "" {
		chain = append(chain, f)
	}
	for _, e := range c.Effects {
		if f := e.Expr(); f != "" {
			chain = append(chain, f)
		}
	}
	if normalize && st.canvas != nil {
		chain = append(chain, canvasFilters(*st.canvas)...)
	}
	if c.StartAtMs > 0 {
		chain = append(chain, fmt.Sprintf("setpts=PTS+%s/TB", secs(c.StartAtMs)))
	}
	return chain
}

// trimFilter renders trim/atrim. A window starting at zero without an end is
// the identity and yields "".
func trimFilter(name string, startMs, endMs int64) string {
	switch {
	case endMs > 0:
		return fmt.Sprintf("%s=start=%s:end=%s", name, secs(startMs), secs(endMs))
	case startMs > 0:
		return fmt.Sprintf("%s=start=%s", name, secs(startMs))
	default:
		return ""
	}
}

// cropFilter center-crops to ratio (width/height).
func cropFilter(ratio float64) string {
	r := num(math.Max(minCropRatio, ratio))
	return fmt.Sprintf("crop=w='min(iw,ih*%s)':h='min(ih,iw/%s)':x=(iw-ow)/2:y=(ih-oh)/2", r, r)
}

// rotationFilters maps right angles onto transpose and everything else onto
// rotate with a black fill.
func rotationFilters(degrees int) []string {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return nil
	case 90:
		return []string{"transpose=1"}
	case 180:
		return []string{"transpose=1", "transpose=1"}
	case 270:
		return []string{"transpose=2"}
	default:
		rad := float64(degrees) * math.Pi / 180
		return []string{fmt.Sprintf("rotate=%s:fillcolor=black", num(rad))}
	}
}

func canvasFilters(c Canvas) []string {
	var out []string
	if c.Width > 0 && c.Height > 0 {
		out = append(out,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", c.Width, c.Height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", c.Width, c.Height),
			"setsar=1",
		)
	}
	if c.FPS > 0 {
		out = append(out, fmt.Sprintf("fps=%d", c.FPS))
	}
	return append(out, "format=yuv420p")
}
