// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a packed 0xAARRGGBB value.
type Color uint32

// White is opaque white, the default overlay color.
const White Color = 0xFFFFFFFF

// Alpha returns the alpha channel.
func (c Color) Alpha() uint8 { return uint8(c >> 24) }

// RGB returns the color without its alpha channel.
func (c Color) RGB() uint32 { return uint32(c) & 0x00FFFFFF }

// Opacity maps the alpha channel to 0..1.
func (c Color) Opacity() float64 { return float64(c.Alpha()) / 255.0 }

// String renders the color as #AARRGGBB.
func (c Color) String() string { return fmt.Sprintf("#%08X", uint32(c)) }

// ParseColor accepts #RRGGBB (opaque) and #AARRGGBB.
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	h = strings.TrimPrefix(strings.ToLower(h), "0x")
	switch len(h) {
	case 6:
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: color %q", ErrInvalidValue, s)
		}
		return Color(0xFF000000 | uint32(v)), nil
	case 8:
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: color %q", ErrInvalidValue, s)
		}
		return Color(v), nil
	default:
		return 0, fmt.Errorf("%w: color %q", ErrInvalidValue, s)
	}
}
