// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compiler

import (
	"fmt"
	"strings"
	"time"
)

// Format is an export container.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMOV Format = "mov"
	FormatMKV Format = "mkv"
)

// ParseFormat resolves a container name; the empty string means mp4.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case "":
		return FormatMP4, nil
	case FormatMP4, FormatMOV, FormatMKV:
		return f, nil
	case "matroska":
		return FormatMKV, nil
	default:
		return "", fmt.Errorf("unsupported container format %q", s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string { return "." + string(f) }

// Muxer returns the value passed to ffmpeg's -f.
func (f Format) Muxer() string {
	if f == FormatMKV {
		return "matroska"
	}
	return string(f)
}

// MIMEType returns the media type of the container.
func (f Format) MIMEType() string {
	switch f {
	case FormatMOV:
		return "video/quicktime"
	case FormatMKV:
		return "video/x-matroska"
	default:
		return "video/mp4"
	}
}

// fastStart reports whether the container benefits from +faststart.
func (f Format) fastStart() bool { return f == FormatMP4 || f == FormatMOV }

// PreviewOptions controls cheap preview renders.
type PreviewOptions struct {
	Width        int
	Height       int
	FPS          int
	MaxDuration  time.Duration
	VideoBitrate int // bits per second
	Output       string
}

// DefaultPreviewOptions returns 640x360 at 24fps capped at ten seconds.
func DefaultPreviewOptions(output string) PreviewOptions {
	return PreviewOptions{
		Width:        640,
		Height:       360,
		FPS:          24,
		MaxDuration:  10 * time.Second,
		VideoBitrate: 1_200_000,
		Output:       output,
	}
}

// ExportOptions controls final renders. Width and Height must be set
// together or not at all; zero keeps the source resolution.
type ExportOptions struct {
	Format       Format
	Width        int
	Height       int
	FPS          int
	VideoBitrate int // bits per second, 0 leaves it to the encoder
	AudioBitrate int // bits per second, 0 leaves it to the encoder
	IncludeAudio bool
	Output       string
}

// DefaultExportOptions keeps the source resolution at 30fps with 192k audio.
func DefaultExportOptions(output string) ExportOptions {
	return ExportOptions{
		Format:       FormatMP4,
		FPS:          30,
		AudioBitrate: 192_000,
		IncludeAudio: true,
		Output:       output,
	}
}

// Quality is a named export preset.
type Quality string

const (
	QualityOriginal Quality = "original"
	Quality1080p    Quality = "1080p"
	Quality720p     Quality = "720p"
	Quality480p     Quality = "480p"
)

// ParseQuality resolves a preset name; the empty string means original.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityOriginal, nil
	case QualityOriginal, Quality1080p, Quality720p, Quality480p:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quality preset %q", s)
	}
}

// ExportOptionsForQuality applies a preset on top of DefaultExportOptions.
func ExportOptionsForQuality(q Quality, output string) ExportOptions {
	o := DefaultExportOptions(output)
	switch q {
	case Quality1080p:
		o.Width, o.Height, o.VideoBitrate = 1920, 1080, 6_000_000
	case Quality720p:
		o.Width, o.Height, o.VideoBitrate = 1280, 720, 3_500_000
	case Quality480p:
		o.Width, o.Height, o.VideoBitrate = 854, 480, 2_000_000
	}
	return o
}
