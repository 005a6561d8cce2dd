// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vcompose/internal/graph"
	"github.com/ManuGH/vcompose/internal/timeline"
)

func mustClip(t *testing.T, path string, opts ...timeline.VideoClipOption) timeline.VideoClip {
	t.Helper()
	c, err := timeline.NewVideoClip(path, opts...)
	require.NoError(t, err)
	return c
}

func oneTrack(clips ...timeline.VideoClip) timeline.Timeline {
	return timeline.Timeline{VideoTracks: []timeline.VideoTrack{{ID: "main", Clips: clips}}}
}

// argValue returns the value following flag, or "" when absent.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func countFlag(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func TestPreviewCommand(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4", timeline.WithTrim(1000, 4000), timeline.WithoutAudio()))

	cmd, err := c.Preview(tl, DefaultPreviewOptions("/tmp/preview.mp4"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-y", "-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", "/in/a.mp4",
		"-filter_complex", "[0:v]trim=start=1:end=4,setpts=PTS-STARTPTS[v0];[v0]scale=640:360:flags=lanczos,fps=24[v1]",
		"-map", "[v1]",
		"-t", "10",
		"-c:v", "libx264", "-preset", "ultrafast",
		"-b:v", "1200k",
		"-an",
		"-movflags", "+faststart",
		"-f", "mp4",
		"/tmp/preview.mp4",
	}, cmd.Args)
	assert.Equal(t, TargetPreview, cmd.Target)
	assert.Equal(t, 3*time.Second, cmd.ExpectedDuration)
	assert.False(t, cmd.HasAudio)
}

func TestPreviewCapsExpectedDuration(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4", timeline.WithTrim(0, 60000)))

	o := DefaultPreviewOptions("/tmp/p.mp4")
	o.MaxDuration = 6 * time.Second
	cmd, err := c.Preview(tl, o)
	require.NoError(t, err)

	assert.Equal(t, "6", argValue(cmd.Args, "-t"))
	assert.Equal(t, 6*time.Second, cmd.ExpectedDuration)
	assert.True(t, cmd.HasAudio)
	assert.Equal(t, 2, countFlag(cmd.Args, "-map"))
	assert.Equal(t, "aac", argValue(cmd.Args, "-c:a"))
	assert.NotContains(t, cmd.Args, "-an")
}

func TestPreviewRejectsBadOptions(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4"))

	_, err := c.Preview(tl, PreviewOptions{Width: 640, Height: 360, FPS: 24})
	assert.True(t, IsConfigurationError(err))

	_, err = c.Preview(tl, PreviewOptions{Width: 641, Height: 360, FPS: 24, Output: "/tmp/x.mp4"})
	assert.True(t, IsConfigurationError(err))

	_, err = c.Preview(tl, PreviewOptions{Width: 640, Height: 360, Output: "/tmp/x.mp4"})
	assert.True(t, IsConfigurationError(err))
}

func TestPreviewRequiresDurationCap(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4"))

	o := DefaultPreviewOptions("/tmp/p.mp4")
	o.MaxDuration = 0
	cmd, err := c.Preview(tl, o)
	assert.Nil(t, cmd)
	assert.True(t, IsConfigurationError(err))
}

func TestOutputMustNotOverwriteInput(t *testing.T) {
	c := New(nil, Config{})
	dir := t.TempDir()
	src := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(src, []byte("media"), 0o644))
	link := filepath.Join(dir, "link.mp4")
	require.NoError(t, os.Symlink(src, link))
	tl := oneTrack(mustClip(t, src))

	for name, output := range map[string]string{
		"same path":    src,
		"unclean path": filepath.Join(dir, ".", "source.mp4"),
		"symlink":      link,
	} {
		t.Run(name, func(t *testing.T) {
			cmd, err := c.Export(tl, DefaultExportOptions(output))
			assert.Nil(t, cmd)
			assert.ErrorIs(t, err, ErrOutputIsInput)
			assert.True(t, IsConfigurationError(err))

			_, err = c.Preview(tl, DefaultPreviewOptions(output))
			assert.ErrorIs(t, err, ErrOutputIsInput)
		})
	}
}

func TestJoinedClipsShareCanvas(t *testing.T) {
	tl := oneTrack(
		mustClip(t, "/in/a.mp4", timeline.WithTrim(0, 3000), timeline.WithRotation(90), timeline.WithoutAudio()),
		mustClip(t, "/in/b.mp4", timeline.WithTrim(0, 3000), timeline.WithFilter(timeline.FilterGrayscale), timeline.WithoutAudio()),
	)
	tl.VideoTracks[0].Transitions = []timeline.Transition{timeline.DefaultTransition()}

	t.Run("preview", func(t *testing.T) {
		cmd, err := New(nil, Config{}).Preview(tl, DefaultPreviewOptions("/tmp/p.mp4"))
		require.NoError(t, err)
		fc := argValue(cmd.Args, "-filter_complex")
		assert.Equal(t, 2, strings.Count(fc, "pad=640:360:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=24,format=yuv420p"), fc)
	})

	t.Run("export with resolution", func(t *testing.T) {
		cmd, err := New(nil, Config{}).Export(tl, ExportOptionsForQuality(Quality720p, "/out/x.mp4"))
		require.NoError(t, err)
		fc := argValue(cmd.Args, "-filter_complex")
		assert.Equal(t, 2, strings.Count(fc, "scale=1280:720:force_original_aspect_ratio=decrease"), fc)
	})

	t.Run("export at source resolution", func(t *testing.T) {
		b := graph.NewBuilder(graph.WithSourceInfo(map[string]graph.SourceInfo{
			"/in/a.mp4": {Width: 1920, Height: 1080},
		}))
		cmd, err := New(b, Config{}).Export(tl, DefaultExportOptions("/out/x.mp4"))
		require.NoError(t, err)
		fc := argValue(cmd.Args, "-filter_complex")
		assert.Equal(t, 2, strings.Count(fc, "pad=1080:1920:"), fc)
	})

	t.Run("export without probe data", func(t *testing.T) {
		cmd, err := New(nil, Config{}).Export(tl, DefaultExportOptions("/out/x.mp4"))
		require.NoError(t, err)
		fc := argValue(cmd.Args, "-filter_complex")
		assert.NotContains(t, fc, "pad=")
		// both clips plus the export sink
		assert.Equal(t, 3, strings.Count(fc, "fps=30,format=yuv420p[v"), fc)
	})
}

func TestExportCommand(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4", timeline.WithTrim(0, 5000)))

	cmd, err := c.Export(tl, ExportOptionsForQuality(Quality720p, "/out/final.mp4"))
	require.NoError(t, err)

	fc := argValue(cmd.Args, "-filter_complex")
	assert.True(t, strings.HasSuffix(fc, "[v0]scale=1280:720,fps=30,format=yuv420p[v2]"), fc)
	assert.Equal(t, "[v2]", cmd.Args[indexOf(cmd.Args, "-map")+1])
	assert.Equal(t, "veryfast", argValue(cmd.Args, "-preset"))
	assert.Equal(t, "3500k", argValue(cmd.Args, "-b:v"))
	assert.Equal(t, "192k", argValue(cmd.Args, "-b:a"))
	assert.Equal(t, "+faststart", argValue(cmd.Args, "-movflags"))
	assert.Equal(t, "mp4", argValue(cmd.Args, "-f"))
	assert.Equal(t, "/out/final.mp4", cmd.Args[len(cmd.Args)-1])
	assert.True(t, cmd.HasAudio)
	assert.Equal(t, 5*time.Second, cmd.ExpectedDuration)
}

func TestExportKeepsSourceResolution(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4", timeline.WithoutAudio()))

	cmd, err := c.Export(tl, ExportOptions{Format: FormatMKV, Output: "/out/final.mkv", IncludeAudio: true})
	require.NoError(t, err)

	fc := argValue(cmd.Args, "-filter_complex")
	assert.NotContains(t, fc, "scale=")
	assert.NotContains(t, fc, "fps=")
	assert.Contains(t, fc, "format=yuv420p")
	assert.Contains(t, cmd.Args, "-an")
	assert.NotContains(t, cmd.Args, "-movflags")
	assert.Equal(t, "matroska", argValue(cmd.Args, "-f"))
	assert.False(t, cmd.HasAudio)
}

func TestExportRejectsPartialResolution(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4"))

	for _, o := range []ExportOptions{
		{Width: 1280, Output: "/out/x.mp4"},
		{Height: 720, Output: "/out/x.mp4"},
	} {
		cmd, err := c.Export(tl, o)
		require.Error(t, err)
		assert.Nil(t, cmd, "no command may be produced for a partial resolution")
		assert.True(t, IsConfigurationError(err))
		assert.ErrorIs(t, err, ErrPartialResolution)
	}
}

func TestExportAudioRequiresBothFlagAndSink(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "/in/a.mp4"))

	o := DefaultExportOptions("/out/x.mp4")
	o.IncludeAudio = false
	cmd, err := c.Export(tl, o)
	require.NoError(t, err)
	assert.Equal(t, 1, countFlag(cmd.Args, "-map"))
	assert.Contains(t, cmd.Args, "-an")
	assert.Empty(t, argValue(cmd.Args, "-b:a"))
}

func TestEmptyTimelineIsConfigurationError(t *testing.T) {
	c := New(nil, Config{})

	_, err := c.Export(timeline.Timeline{}, DefaultExportOptions("/out/x.mp4"))
	require.Error(t, err)

	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, graph.ErrNoVideoTracks)

	_, err = c.Preview(timeline.Timeline{}, DefaultPreviewOptions("/tmp/p.mp4"))
	assert.ErrorIs(t, err, graph.ErrNoVideoTracks)
}

func TestSameSourceSingleInput(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(
		mustClip(t, "/in/a.mp4", timeline.WithTrim(0, 1000)),
		mustClip(t, "/in/a.mp4", timeline.WithTrim(2000, 3000)),
	)
	cmd, err := c.Export(tl, DefaultExportOptions("/out/x.mp4"))
	require.NoError(t, err)
	assert.Equal(t, 1, countFlag(cmd.Args, "-i"))
}

func TestRepeatedPreviewIsIdentical(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(
		mustClip(t, "/in/a.mp4", timeline.WithTrim(0, 3000), timeline.WithRotation(90)),
		mustClip(t, "/in/b.mp4", timeline.WithTrim(0, 3000), timeline.WithFilter(timeline.FilterCool)),
	)
	tl.VideoTracks[0].Transitions = []timeline.Transition{timeline.DefaultTransition()}
	o, err := timeline.NewTextOverlay("caption: 'quoted'")
	require.NoError(t, err)
	tl.TextOverlays = append(tl.TextOverlays, o)

	first, err := c.Preview(tl, DefaultPreviewOptions("/tmp/p.mp4"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Preview(tl.Clone(), DefaultPreviewOptions("/tmp/p.mp4"))
		require.NoError(t, err)
		assert.Equal(t, first.Args, again.Args)
	}
}

func TestPathsWithColonsArePrefixed(t *testing.T) {
	c := New(nil, Config{})
	tl := oneTrack(mustClip(t, "take:1.mp4", timeline.WithoutAudio()))

	cmd, err := c.Export(tl, DefaultExportOptions("out:final.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "file:take:1.mp4", argValue(cmd.Args, "-i"))
	assert.Equal(t, "file:out:final.mp4", cmd.Args[len(cmd.Args)-1])
	assert.Equal(t, "out:final.mp4", cmd.Output)
}

func TestCommandLineQuoting(t *testing.T) {
	cmd := &Command{Args: []string{"-i", "/in/my clip.mp4", "-filter_complex", "[0:v]drawtext=text=it\\'s[v0]"}}
	assert.Equal(t,
		`ffmpeg -i '/in/my clip.mp4' -filter_complex '[0:v]drawtext=text=it\'\''s[v0]'`,
		cmd.String())
}

func TestBitrateFormatting(t *testing.T) {
	assert.Equal(t, "6000k", bitrate(6_000_000))
	assert.Equal(t, "1500", bitrate(1500))
	assert.Equal(t, "0.5", seconds(500*time.Millisecond))
}

func TestParseHelpers(t *testing.T) {
	f, err := ParseFormat(".MKV")
	require.NoError(t, err)
	assert.Equal(t, FormatMKV, f)
	assert.Equal(t, ".mkv", f.Extension())
	assert.Equal(t, "video/x-matroska", f.MIMEType())

	_, err = ParseFormat("avi")
	assert.Error(t, err)

	q, err := ParseQuality("1080P")
	require.NoError(t, err)
	o := ExportOptionsForQuality(q, "/x.mp4")
	assert.Equal(t, 1920, o.Width)
	assert.Equal(t, 6_000_000, o.VideoBitrate)

	o = ExportOptionsForQuality(QualityOriginal, "/x.mp4")
	assert.Zero(t, o.Width)
	assert.Zero(t, o.Height)
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}
