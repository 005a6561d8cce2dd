// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"errors"
	"fmt"
)

// Validate re-checks every construction invariant. Values built through the
// constructors always pass; decoded or hand-assembled timelines may not.
func (t Timeline) Validate() error {
	var errs []error
	for ti, tr := range t.VideoTracks {
		for _, c := range tr.Clips {
			if err := c.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("video track %d: %w", ti, err))
			}
		}
		if n := len(tr.Clips); len(tr.Transitions) > 0 && len(tr.Transitions) > max(n-1, 0) {
			errs = append(errs, fmt.Errorf("video track %d: %w (%d transitions, %d clips)",
				ti, ErrTooManyTransitions, len(tr.Transitions), n))
		}
		for _, x := range tr.Transitions {
			if err := x.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("video track %d: %w", ti, err))
			}
		}
	}
	for ti, tr := range t.AudioTracks {
		for _, c := range tr.Clips {
			if err := c.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("audio track %d: %w", ti, err))
			}
		}
	}
	for _, o := range t.TextOverlays {
		if err := o.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
