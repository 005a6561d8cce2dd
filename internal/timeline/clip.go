// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package timeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewID returns a time-ordered identifier for clips, tracks and overlays.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// VideoClipOption customizes a clip built by NewVideoClip.
type VideoClipOption func(*VideoClip)

// WithTrim sets the trim window. endMs == 0 leaves the clip open-ended.
func WithTrim(startMs, endMs int64) VideoClipOption {
	return func(c *VideoClip) { c.StartMs, c.EndMs = startMs, endMs }
}

// WithPlacement shifts the clip to start at the given timeline position.
func WithPlacement(startAtMs int64) VideoClipOption {
	return func(c *VideoClip) { c.StartAtMs = startAtMs }
}

// WithSpeed sets the playback speed.
func WithSpeed(speed float64) VideoClipOption {
	return func(c *VideoClip) { c.Speed = speed }
}

// WithCrop requests a centered crop to ratio (width/height).
func WithCrop(ratio float64) VideoClipOption {
	return func(c *VideoClip) { c.Crop = &Crop{Ratio: ratio} }
}

// WithRotation rotates the clip clockwise by degrees.
func WithRotation(degrees int) VideoClipOption {
	return func(c *VideoClip) { c.RotationDegrees = degrees }
}

// WithFilter applies a filter preset.
func WithFilter(f Filter) VideoClipOption {
	return func(c *VideoClip) { c.Filter = f }
}

// WithEffects appends effects in order.
func WithEffects(effects ...Effect) VideoClipOption {
	return func(c *VideoClip) { c.Effects = append(c.Effects, effects...) }
}

// WithoutAudio drops the clip's own audio.
func WithoutAudio() VideoClipOption {
	return func(c *VideoClip) { c.IncludeAudio = false }
}

// WithVolume scales the clip's audio.
func WithVolume(v float64) VideoClipOption {
	return func(c *VideoClip) { c.Volume = v }
}

// WithClipID overrides the generated clip ID.
func WithClipID(id string) VideoClipOption {
	return func(c *VideoClip) { c.ID = id }
}

// NewVideoClip builds a validated clip referencing sourcePath.
// Audio is included at unity volume unless an option says otherwise.
func NewVideoClip(sourcePath string, opts ...VideoClipOption) (VideoClip, error) {
	c := VideoClip{
		SourcePath:   sourcePath,
		Speed:        1,
		IncludeAudio: true,
		Volume:       1,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if err := c.Validate(); err != nil {
		return VideoClip{}, err
	}
	return c, nil
}

// Validate checks the clip's construction invariants.
func (c VideoClip) Validate() error {
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("clip %s: %w", c.ID, ErrMissingSource)
	}
	if err := validateWindow(c.StartMs, c.EndMs, c.StartAtMs); err != nil {
		return fmt.Errorf("clip %s: %w", c.ID, err)
	}
	if c.Speed < 0 || !finite(c.Speed) {
		return fmt.Errorf("clip %s: %w: speed %v", c.ID, ErrInvalidValue, c.Speed)
	}
	if c.Volume < 0 || !finite(c.Volume) {
		return fmt.Errorf("clip %s: %w: volume %v", c.ID, ErrInvalidValue, c.Volume)
	}
	if c.Crop != nil && (c.Crop.Ratio <= 0 || !finite(c.Crop.Ratio)) {
		return fmt.Errorf("clip %s: %w: crop ratio %v", c.ID, ErrInvalidValue, c.Crop.Ratio)
	}
	if !c.Filter.Valid() {
		return fmt.Errorf("clip %s: %w: %s", c.ID, ErrUnknownPreset, c.Filter)
	}
	for _, e := range c.Effects {
		if !e.Valid() {
			return fmt.Errorf("clip %s: %w: %s", c.ID, ErrUnknownPreset, e)
		}
	}
	return nil
}

// AudioClipOption customizes a clip built by NewAudioClip.
type AudioClipOption func(*AudioClip)

// WithAudioTrim sets the trim window of an audio clip.
func WithAudioTrim(startMs, endMs int64) AudioClipOption {
	return func(c *AudioClip) { c.StartMs, c.EndMs = startMs, endMs }
}

// WithAudioPlacement delays the audio clip on the timeline.
func WithAudioPlacement(startAtMs int64) AudioClipOption {
	return func(c *AudioClip) { c.StartAtMs = startAtMs }
}

// WithAudioSpeed sets the audio playback speed.
func WithAudioSpeed(speed float64) AudioClipOption {
	return func(c *AudioClip) { c.Speed = speed }
}

// WithAudioVolume scales the audio clip.
func WithAudioVolume(v float64) AudioClipOption {
	return func(c *AudioClip) { c.Volume = v }
}

// NewAudioClip builds a validated audio clip.
func NewAudioClip(sourcePath string, opts ...AudioClipOption) (AudioClip, error) {
	c := AudioClip{SourcePath: sourcePath, Speed: 1, Volume: 1}
	for _, opt := range opts {
		opt(&c)
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if err := c.Validate(); err != nil {
		return AudioClip{}, err
	}
	return c, nil
}

// Validate checks the audio clip's construction invariants.
func (c AudioClip) Validate() error {
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("audio clip %s: %w", c.ID, ErrMissingSource)
	}
	if err := validateWindow(c.StartMs, c.EndMs, c.StartAtMs); err != nil {
		return fmt.Errorf("audio clip %s: %w", c.ID, err)
	}
	if c.Speed < 0 || !finite(c.Speed) {
		return fmt.Errorf("audio clip %s: %w: speed %v", c.ID, ErrInvalidValue, c.Speed)
	}
	if c.Volume < 0 || !finite(c.Volume) {
		return fmt.Errorf("audio clip %s: %w: volume %v", c.ID, ErrInvalidValue, c.Volume)
	}
	return nil
}

// NewTransition builds a transition; durationMs == 0 uses the default length.
func NewTransition(t TransitionType, durationMs int64) (Transition, error) {
	if durationMs == 0 {
		durationMs = DefaultTransitionMs
	}
	tr := Transition{Type: t, DurationMs: durationMs}
	return tr, tr.Validate()
}

// Validate checks the transition's type and duration.
func (t Transition) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, t.Type)
	}
	if t.DurationMs < 0 {
		return fmt.Errorf("%w: transition duration %d", ErrInvalidValue, t.DurationMs)
	}
	return nil
}

// TextOverlayOption customizes an overlay built by NewTextOverlay.
type TextOverlayOption func(*TextOverlay)

// WithWindow limits the overlay to [startMs, endMs). endMs == 0 keeps it to the end.
func WithWindow(startMs, endMs int64) TextOverlayOption {
	return func(o *TextOverlay) { o.StartMs, o.EndMs = startMs, endMs }
}

// WithPosition places the overlay at fractions of the frame size.
func WithPosition(x, y float64) TextOverlayOption {
	return func(o *TextOverlay) { o.X, o.Y = x, y }
}

// WithFontSize sets the font size in pixels.
func WithFontSize(size int) TextOverlayOption {
	return func(o *TextOverlay) { o.FontSize = size }
}

// WithColor sets the ARGB text color.
func WithColor(c Color) TextOverlayOption {
	return func(o *TextOverlay) { o.Color = c }
}

// NewTextOverlay builds a validated overlay. Text is NFC-normalized so
// composed and decomposed input render identically.
func NewTextOverlay(text string, opts ...TextOverlayOption) (TextOverlay, error) {
	o := TextOverlay{
		Text:     norm.NFC.String(text),
		X:        0.1,
		Y:        0.1,
		FontSize: 36,
		Color:    White,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ID == "" {
		o.ID = NewID()
	}
	if err := o.Validate(); err != nil {
		return TextOverlay{}, err
	}
	return o, nil
}

// Validate checks the overlay's construction invariants.
func (o TextOverlay) Validate() error {
	if o.StartMs < 0 || (o.EndMs != 0 && o.EndMs <= o.StartMs) {
		return fmt.Errorf("overlay %s: %w: [%d,%d)", o.ID, ErrInvalidTrim, o.StartMs, o.EndMs)
	}
	if !finite(o.X) || !finite(o.Y) || o.X < 0 || o.X > 1 || o.Y < 0 || o.Y > 1 {
		return fmt.Errorf("overlay %s: %w: position (%v,%v)", o.ID, ErrInvalidValue, o.X, o.Y)
	}
	if o.FontSize <= 0 {
		return fmt.Errorf("overlay %s: %w: font size %d", o.ID, ErrInvalidValue, o.FontSize)
	}
	return nil
}

func validateWindow(startMs, endMs, startAtMs int64) error {
	if startMs < 0 {
		return fmt.Errorf("%w: start %d", ErrInvalidTrim, startMs)
	}
	if endMs < 0 || (endMs > 0 && endMs <= startMs) {
		return fmt.Errorf("%w: [%d,%d)", ErrInvalidTrim, startMs, endMs)
	}
	if startAtMs < 0 {
		return fmt.Errorf("%w: placement %d", ErrInvalidTrim, startAtMs)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
