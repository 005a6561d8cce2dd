// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"fmt"
	"strings"

	"github.com/ManuGH/vcompose/internal/timeline"
)

// textOverlays chains one drawtext per overlay onto the composite. Later
// overlays draw on top of earlier ones.
func (st *build) textOverlays(video NodeID, overlays []timeline.TextOverlay, compositeMs int64) NodeID {
	filters := make([]string, 0, len(overlays))
	for _, o := range overlays {
		filters = append(filters, st.drawtext(o, compositeMs))
	}
	return st.g.add(Video, []Ref{NodeRef(video, Video)}, filters...)
}

func (st *build) drawtext(o timeline.TextOverlay, compositeMs int64) string {
	var b strings.Builder
	b.WriteString("drawtext=")
	if st.fontFile != "" {
		b.WriteString("fontfile=")
		b.WriteString(EscapeText(st.fontFile))
		b.WriteByte(':')
	}
	b.WriteString("expansion=none:text=")
	b.WriteString(EscapeText(o.Text))
	fmt.Fprintf(&b, ":x=w*%s:y=h*%s:fontsize=%d:fontcolor=0x%06X@%s",
		num(o.X), num(o.Y), o.FontSize, o.Color.RGB(), num(o.Color.Opacity()))

	end := o.EndMs
	if end == 0 {
		end = compositeMs
	}
	if end > o.StartMs {
		fmt.Fprintf(&b, ":enable='between(t,%s,%s)'", secs(o.StartMs), secs(end))
	} else {
		fmt.Fprintf(&b, ":enable='gte(t,%s)'", secs(o.StartMs))
	}
	return b.String()
}
