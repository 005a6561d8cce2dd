// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/vcompose/internal/compiler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFFmpeg writes a shell script that stands in for ffmpeg. The body runs
// with $out set to the last argument.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a; do out=\"$a\"; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testCommand(t *testing.T) *compiler.Command {
	t.Helper()
	return &compiler.Command{
		Target:           compiler.TargetPreview,
		Args:             []string{"-y", "-i", "in.mp4", "out"},
		Output:           filepath.Join(t.TempDir(), "nested", "preview.mp4"),
		ExpectedDuration: 1500 * time.Millisecond,
	}
}

func TestRunSuccess(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "frame=10"
echo "out_time_us=500000"
echo "progress=continue"
printf 'data' > "$out"
echo "progress=end"`)
	cmd := testCommand(t)

	res := New(bin).Run(context.Background(), cmd)

	require.True(t, res.OK, "%s: %s", res.Message, res.Detail)
	assert.Equal(t, cmd.Output, res.File)
	assert.Equal(t, int64(4), res.SizeBytes)
	assert.Equal(t, 1500*time.Millisecond, res.Duration)
	assert.NoError(t, res.Err())
	assert.Equal(t, "success", res.Outcome())
}

func TestRunNonZeroExitCarriesStderrTail(t *testing.T) {
	bin := fakeFFmpeg(t, `printf 'partial' > "$out"
echo "Invalid argument" >&2
exit 1`)
	cmd := testCommand(t)

	res := New(bin).Run(context.Background(), cmd)

	require.False(t, res.OK)
	assert.Equal(t, KindExternalTool, res.Kind)
	assert.Contains(t, res.Message, "code 1")
	assert.Contains(t, res.Detail, "Invalid argument")
	assert.NoFileExists(t, cmd.Output)

	var execErr *Error
	require.ErrorAs(t, res.Err(), &execErr)
	assert.Equal(t, KindExternalTool, execErr.Kind)
}

func TestRunEmptyOutputIsIOFailure(t *testing.T) {
	bin := fakeFFmpeg(t, `: > "$out"`)
	res := New(bin).Run(context.Background(), testCommand(t))

	require.False(t, res.OK)
	assert.Equal(t, KindIO, res.Kind)
}

func TestRunMissingOutputIsIOFailure(t *testing.T) {
	bin := fakeFFmpeg(t, `exit 0`)
	res := New(bin).Run(context.Background(), testCommand(t))

	require.False(t, res.OK)
	assert.Equal(t, KindIO, res.Kind)
}

func TestRunUncreatableDirectoryIsIOFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cmd := testCommand(t)
	cmd.Output = filepath.Join(blocker, "sub", "out.mp4")

	res := New(fakeFFmpeg(t, `exit 0`)).Run(context.Background(), cmd)

	require.False(t, res.OK)
	assert.Equal(t, KindIO, res.Kind)
}

func TestRunMissingBinary(t *testing.T) {
	res := New(filepath.Join(t.TempDir(), "no-ffmpeg")).Run(context.Background(), testCommand(t))

	require.False(t, res.OK)
	assert.Equal(t, KindExternalTool, res.Kind)
}

func TestRunNilCommand(t *testing.T) {
	res := New("ffmpeg").Run(context.Background(), nil)

	require.False(t, res.OK)
	assert.Equal(t, KindConfiguration, res.Kind)
}

func TestRunCanceled(t *testing.T) {
	bin := fakeFFmpeg(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	res := New(bin, WithKillGrace(500*time.Millisecond)).Run(ctx, testCommand(t))

	require.False(t, res.OK)
	assert.Equal(t, KindCanceled, res.Kind)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(fakeFFmpeg(t, `exit 0`)).Run(ctx, testCommand(t))

	require.False(t, res.OK)
	assert.Equal(t, KindCanceled, res.Kind)
}

func TestRunKeepsPreexistingOutput(t *testing.T) {
	existing := func(t *testing.T) *compiler.Command {
		t.Helper()
		cmd := testCommand(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(cmd.Output), 0o755))
		require.NoError(t, os.WriteFile(cmd.Output, []byte("keep"), 0o644))
		return cmd
	}

	t.Run("canceled before start", func(t *testing.T) {
		cmd := existing(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := New(fakeFFmpeg(t, `exit 0`)).Run(ctx, cmd)

		require.False(t, res.OK)
		assert.Equal(t, KindCanceled, res.Kind)
		assert.FileExists(t, cmd.Output)
	})

	t.Run("tool failure", func(t *testing.T) {
		cmd := existing(t)

		res := New(fakeFFmpeg(t, `exit 1`)).Run(context.Background(), cmd)

		require.False(t, res.OK)
		assert.Equal(t, KindExternalTool, res.Kind)
		data, err := os.ReadFile(cmd.Output)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))
	})

	t.Run("missing binary", func(t *testing.T) {
		cmd := existing(t)

		res := New(filepath.Join(t.TempDir(), "no-ffmpeg")).Run(context.Background(), cmd)

		require.False(t, res.OK)
		assert.FileExists(t, cmd.Output)
	})
}

func TestRunStallWatchdog(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "progress=continue"
sleep 30`)
	exec := New(bin,
		WithStallTimeout(200*time.Millisecond),
		WithStartupGrace(0),
		WithKillGrace(500*time.Millisecond),
	)

	start := time.Now()
	res := exec.Run(context.Background(), testCommand(t))

	require.False(t, res.OK)
	assert.Equal(t, KindExternalTool, res.Kind)
	assert.Contains(t, res.Message, "stalled")
	assert.Less(t, time.Since(start), 10*time.Second)
}
