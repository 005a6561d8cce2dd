// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"
	"strings"
)

// Filter is a color/look preset applied to a whole clip.
type Filter int

const (
	FilterNone Filter = iota
	FilterGrayscale
	FilterSepia
	FilterVignette
	FilterContrastBoost
	FilterWarm
	FilterCool
	FilterBright
)

var filterNames = [...]string{
	FilterNone:          "none",
	FilterGrayscale:     "grayscale",
	FilterSepia:         "sepia",
	FilterVignette:      "vignette",
	FilterContrastBoost: "contrast_boost",
	FilterWarm:          "warm",
	FilterCool:          "cool",
	FilterBright:        "bright",
}

func (f Filter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("filter(%d)", int(f))
	}
	return filterNames[f]
}

// Valid reports whether f is one of the known presets.
func (f Filter) Valid() bool { return f >= 0 && int(f) < len(filterNames) }

// Expr returns the ffmpeg filter expression for the preset. FilterNone
// returns the empty string.
func (f Filter) Expr() string {
	switch f {
	case FilterGrayscale:
		return "format=gray"
	case FilterSepia:
		return "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131"
	case FilterVignette:
		return "vignette=PI/4"
	case FilterContrastBoost:
		return "eq=contrast=1.3:saturation=1.1"
	case FilterWarm:
		return "colorbalance=rs=.05:gs=.02:bs=-.02"
	case FilterCool:
		return "colorbalance=rs=-.02:gs=.02:bs=.05"
	case FilterBright:
		return "eq=brightness=0.05:saturation=1.1"
	default:
		return ""
	}
}

// ParseFilter resolves a preset by name. The empty string maps to FilterNone.
func ParseFilter(name string) (Filter, error) {
	n := normalizeName(name)
	if n == "" {
		return FilterNone, nil
	}
	for i, s := range filterNames {
		if s == n {
			return Filter(i), nil
		}
	}
	return FilterNone, fmt.Errorf("%w: filter %q", ErrUnknownPreset, name)
}

// Effect is a motion or blur effect stacked after the filter preset.
type Effect int

const (
	EffectNone Effect = iota
	EffectZoomIn
	EffectZoomOut
	EffectShake
	EffectGlow
	EffectBlur
)

var effectNames = [...]string{
	EffectNone:    "none",
	EffectZoomIn:  "zoom_in",
	EffectZoomOut: "zoom_out",
	EffectShake:   "shake",
	EffectGlow:    "glow",
	EffectBlur:    "blur",
}

func (e Effect) String() string {
	if e < 0 || int(e) >= len(effectNames) {
		return fmt.Sprintf("effect(%d)", int(e))
	}
	return effectNames[e]
}

// Valid reports whether e is one of the known effects.
func (e Effect) Valid() bool { return e >= 0 && int(e) < len(effectNames) }

// Expr returns the ffmpeg filter expression for the effect.
func (e Effect) Expr() string {
	switch e {
	case EffectZoomIn:
		return "zoompan=z='min(zoom+0.002,1.5)':d=1"
	case EffectZoomOut:
		return "zoompan=z='max(zoom-0.002,1.0)':d=1"
	case EffectShake:
		return "tblend=all_mode=average,framestep=2"
	case EffectGlow:
		return "gblur=sigma=5"
	case EffectBlur:
		return "gblur=sigma=2"
	default:
		return ""
	}
}

// ParseEffect resolves an effect by name.
func ParseEffect(name string) (Effect, error) {
	n := normalizeName(name)
	if n == "" {
		return EffectNone, nil
	}
	for i, s := range effectNames {
		if s == n {
			return Effect(i), nil
		}
	}
	return EffectNone, fmt.Errorf("%w: effect %q", ErrUnknownPreset, name)
}

// TransitionType selects the xfade transition.
type TransitionType int

const (
	TransitionCrossFade TransitionType = iota
	TransitionWipeLeft
	TransitionWipeRight
	TransitionWipeUp
	TransitionWipeDown
	TransitionSlideLeft
	TransitionSlideRight
	TransitionFadeBlack
)

var transitionNames = [...]string{
	TransitionCrossFade:  "crossfade",
	TransitionWipeLeft:   "wipe_left",
	TransitionWipeRight:  "wipe_right",
	TransitionWipeUp:     "wipe_up",
	TransitionWipeDown:   "wipe_down",
	TransitionSlideLeft:  "slide_left",
	TransitionSlideRight: "slide_right",
	TransitionFadeBlack:  "fade_black",
}

var xfadeNames = [...]string{
	TransitionCrossFade:  "fade",
	TransitionWipeLeft:   "wipeleft",
	TransitionWipeRight:  "wiperight",
	TransitionWipeUp:     "wipeup",
	TransitionWipeDown:   "wipedown",
	TransitionSlideLeft:  "slideleft",
	TransitionSlideRight: "slideright",
	TransitionFadeBlack:  "fadeblack",
}

func (t TransitionType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("transition(%d)", int(t))
	}
	return transitionNames[t]
}

// Valid reports whether t is a known transition.
func (t TransitionType) Valid() bool { return t >= 0 && int(t) < len(transitionNames) }

// XFadeName is the value passed to xfade's transition option.
func (t TransitionType) XFadeName() string {
	if !t.Valid() {
		return xfadeNames[TransitionCrossFade]
	}
	return xfadeNames[t]
}

// ParseTransitionType resolves a transition by name. Both the snake_case
// name and the raw xfade name are accepted.
func ParseTransitionType(name string) (TransitionType, error) {
	n := normalizeName(name)
	if n == "" {
		return TransitionCrossFade, nil
	}
	for i := range transitionNames {
		if transitionNames[i] == n || xfadeNames[i] == n {
			return TransitionType(i), nil
		}
	}
	return TransitionCrossFade, fmt.Errorf("%w: transition %q", ErrUnknownPreset, name)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}
