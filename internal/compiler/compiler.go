// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package compiler serializes filter graphs into ffmpeg argument lists for
// preview and export targets.
package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vcompose/internal/graph"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/timeline"
)

// Config holds encoder settings shared by all compiled commands.
type Config struct {
	VideoEncoder        string
	AudioEncoder        string
	PreviewPreset       string
	ExportPreset        string
	PreviewAudioBitrate int
}

// DefaultConfig returns libx264/aac with ultrafast previews and veryfast exports.
func DefaultConfig() Config {
	return Config{
		VideoEncoder:        "libx264",
		AudioEncoder:        "aac",
		PreviewPreset:       "ultrafast",
		ExportPreset:        "veryfast",
		PreviewAudioBitrate: 128_000,
	}
}

// Compiler turns timelines into ffmpeg commands. It is stateless apart from
// its configuration and safe for concurrent use.
type Compiler struct {
	builder *graph.Builder
	cfg     Config
	logger  zerolog.Logger
}

// New creates a Compiler. A nil builder gets a default one.
func New(builder *graph.Builder, cfg Config) *Compiler {
	if builder == nil {
		builder = graph.NewBuilder()
	}
	def := DefaultConfig()
	if cfg.VideoEncoder == "" {
		cfg.VideoEncoder = def.VideoEncoder
	}
	if cfg.AudioEncoder == "" {
		cfg.AudioEncoder = def.AudioEncoder
	}
	if cfg.PreviewPreset == "" {
		cfg.PreviewPreset = def.PreviewPreset
	}
	if cfg.ExportPreset == "" {
		cfg.ExportPreset = def.ExportPreset
	}
	if cfg.PreviewAudioBitrate == 0 {
		cfg.PreviewAudioBitrate = def.PreviewAudioBitrate
	}
	return &Compiler{builder: builder, cfg: cfg, logger: xlog.WithComponent("compiler")}
}

// Builder returns the graph builder used by the compiler.
func (c *Compiler) Builder() *graph.Builder { return c.builder }

// WithBuilder returns a compiler sharing c's configuration but building
// graphs with b.
func (c *Compiler) WithBuilder(b *graph.Builder) *Compiler {
	cp := *c
	cp.builder = b
	return &cp
}

// Preview compiles a low-resolution, duration-capped render.
func (c *Compiler) Preview(tl timeline.Timeline, o PreviewOptions) (*Command, error) {
	if strings.TrimSpace(o.Output) == "" {
		return nil, configErr("preview output path is required", nil)
	}
	if o.Width <= 0 || o.Height <= 0 || o.FPS <= 0 {
		return nil, configErr(fmt.Sprintf("preview needs a positive size and frame rate, got %dx%d@%d", o.Width, o.Height, o.FPS), nil)
	}
	if err := evenSize(o.Width, o.Height); err != nil {
		return nil, err
	}
	if o.MaxDuration <= 0 {
		return nil, configErr(fmt.Sprintf("preview needs a positive duration cap, got %s", o.MaxDuration), nil)
	}
	g, err := c.build(tl, graph.Canvas{Width: o.Width, Height: o.Height, FPS: o.FPS})
	if err != nil {
		return nil, err
	}
	if err := checkOutput(o.Output, g.Inputs); err != nil {
		return nil, err
	}

	video := g.Append(g.VideoSink,
		fmt.Sprintf("scale=%d:%d:flags=lanczos", o.Width, o.Height),
		fmt.Sprintf("fps=%d", o.FPS),
	)

	args := c.head(g)
	args = append(args, "-map", g.MapArg(video))
	if g.HasAudio() {
		args = append(args, "-map", g.MapArg(g.AudioSink))
	}
	args = append(args, "-t", seconds(o.MaxDuration))
	args = append(args, "-c:v", c.cfg.VideoEncoder, "-preset", c.cfg.PreviewPreset)
	if o.VideoBitrate > 0 {
		args = append(args, "-b:v", bitrate(o.VideoBitrate))
	}
	if g.HasAudio() {
		args = append(args, "-c:a", c.cfg.AudioEncoder, "-b:a", bitrate(c.cfg.PreviewAudioBitrate))
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", "-f", FormatMP4.Muxer(), outputPath(o.Output))

	expected := time.Duration(g.DurationMs) * time.Millisecond
	if expected == 0 || expected > o.MaxDuration {
		expected = o.MaxDuration
	}
	return c.finish(TargetPreview, g, args, o.Output, g.HasAudio(), expected), nil
}

// Export compiles a full-quality render. A partial resolution is rejected
// rather than guessed.
func (c *Compiler) Export(tl timeline.Timeline, o ExportOptions) (*Command, error) {
	if strings.TrimSpace(o.Output) == "" {
		return nil, configErr("export output path is required", nil)
	}
	if (o.Width > 0) != (o.Height > 0) || o.Width < 0 || o.Height < 0 {
		return nil, configErr(fmt.Sprintf("got width=%d height=%d", o.Width, o.Height), ErrPartialResolution)
	}
	if o.Width > 0 {
		if err := evenSize(o.Width, o.Height); err != nil {
			return nil, err
		}
	}
	if o.FPS < 0 || o.VideoBitrate < 0 || o.AudioBitrate < 0 {
		return nil, configErr("frame rate and bitrates must not be negative", nil)
	}
	format, err := ParseFormat(string(o.Format))
	if err != nil {
		return nil, configErr("", err)
	}
	canvas := graph.Canvas{Width: o.Width, Height: o.Height, FPS: o.FPS}
	if o.Width == 0 {
		if cv, ok := c.builder.SourceCanvas(tl, o.FPS); ok {
			canvas = cv
		}
	}
	g, err := c.build(tl, canvas)
	if err != nil {
		return nil, err
	}
	if err := checkOutput(o.Output, g.Inputs); err != nil {
		return nil, err
	}

	var stages []string
	if o.Width > 0 && o.Height > 0 {
		stages = append(stages, fmt.Sprintf("scale=%d:%d", o.Width, o.Height))
	}
	if o.FPS > 0 {
		stages = append(stages, fmt.Sprintf("fps=%d", o.FPS))
	}
	stages = append(stages, "format=yuv420p")
	video := g.Append(g.VideoSink, stages...)

	withAudio := o.IncludeAudio && g.HasAudio()

	args := c.head(g)
	args = append(args, "-map", g.MapArg(video))
	if withAudio {
		args = append(args, "-map", g.MapArg(g.AudioSink))
	}
	args = append(args, "-c:v", c.cfg.VideoEncoder, "-preset", c.cfg.ExportPreset)
	if o.VideoBitrate > 0 {
		args = append(args, "-b:v", bitrate(o.VideoBitrate))
	}
	if withAudio {
		args = append(args, "-c:a", c.cfg.AudioEncoder)
		if o.AudioBitrate > 0 {
			args = append(args, "-b:a", bitrate(o.AudioBitrate))
		}
	} else {
		args = append(args, "-an")
	}
	if format.fastStart() {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-f", format.Muxer(), outputPath(o.Output))

	expected := time.Duration(g.DurationMs) * time.Millisecond
	return c.finish(TargetExport, g, args, o.Output, withAudio, expected), nil
}

// build runs the graph builder with the target's canvas and maps its
// failures onto ConfigurationError.
func (c *Compiler) build(tl timeline.Timeline, canvas graph.Canvas) (*graph.Graph, error) {
	g, err := c.builder.With(graph.WithCanvas(canvas)).Build(tl)
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrNoVideoTracks):
			return nil, configErr("empty timeline", err)
		case errors.Is(err, graph.ErrEmptyTrack):
			return nil, configErr("empty track", err)
		default:
			return nil, configErr("", err)
		}
	}
	return g.Clone(), nil
}

// head renders the global flags, inputs and filter graph.
func (c *Compiler) head(g *graph.Graph) []string {
	args := []string{"-y", "-nostdin", "-hide_banner", "-loglevel", "error"}
	for _, in := range g.Inputs {
		args = append(args, "-i", inputPath(in))
	}
	return append(args, "-filter_complex", g.FilterComplex())
}

func (c *Compiler) finish(target Target, g *graph.Graph, args []string, output string, audio bool, expected time.Duration) *Command {
	cmd := &Command{
		Target:           target,
		Args:             args,
		Inputs:           append([]string(nil), g.Inputs...),
		Output:           output,
		HasAudio:         audio,
		ExpectedDuration: expected,
	}
	c.logger.Debug().
		Str(xlog.FieldEvent, "command.compiled").
		Str(xlog.FieldTarget, string(target)).
		Int("inputs", len(cmd.Inputs)).
		Bool("audio", audio).
		Dur("expected", expected).
		Str(xlog.FieldOutput, output).
		Msg("ffmpeg command compiled")
	return cmd
}

// checkOutput refuses an output that would overwrite one of the inputs.
func checkOutput(output string, inputs []string) error {
	out := absPath(output)
	outInfo, outErr := os.Stat(output)
	for _, in := range inputs {
		if absPath(in) == out {
			return configErr(fmt.Sprintf("output %s is also an input", output), ErrOutputIsInput)
		}
		if outErr != nil {
			continue
		}
		if inInfo, err := os.Stat(in); err == nil && os.SameFile(inInfo, outInfo) {
			return configErr(fmt.Sprintf("output %s is the same file as input %s", output, in), ErrOutputIsInput)
		}
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func evenSize(w, h int) error {
	if w%2 != 0 || h%2 != 0 {
		return configErr(fmt.Sprintf("resolution %dx%d must use even dimensions for yuv420p", w, h), nil)
	}
	return nil
}

// inputPath protects local paths that ffmpeg would otherwise parse as a
// protocol prefix ("clip:1.mp4").
func inputPath(p string) string {
	if strings.Contains(p, "://") || strings.HasPrefix(p, "file:") || !strings.Contains(p, ":") {
		return p
	}
	return "file:" + p
}

func outputPath(p string) string { return inputPath(p) }

func bitrate(bps int) string {
	if bps%1000 == 0 {
		return strconv.Itoa(bps/1000) + "k"
	}
	return strconv.Itoa(bps)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
