// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfine(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "preview-a.mp4"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.mp4"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink("preview-a.mp4", filepath.Join(root, "latest.mp4")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.mp4"), filepath.Join(root, "escape.mp4")))

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		want   string
		errIs  error
		hasErr bool
	}{
		{name: "relative file", target: "preview-a.mp4", want: filepath.Join(realRoot, "preview-a.mp4")},
		{name: "absolute file", target: filepath.Join(root, "preview-a.mp4"), want: filepath.Join(realRoot, "preview-a.mp4")},
		{name: "symlink inside root", target: "latest.mp4", want: filepath.Join(realRoot, "preview-a.mp4")},
		{name: "missing file", target: "export-b.mkv", want: filepath.Join(realRoot, "export-b.mkv")},
		{name: "dotdot", target: "../secret.mp4", errIs: ErrOutsideRoot},
		{name: "absolute outside", target: filepath.Join(outside, "secret.mp4"), errIs: ErrOutsideRoot},
		{name: "symlink escape", target: "escape.mp4", errIs: ErrOutsideRoot},
		{name: "backslash", target: `a\b.mp4`, hasErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Confine(root, tt.target)
			switch {
			case tt.errIs != nil:
				require.ErrorIs(t, err, tt.errIs)
			case tt.hasErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestConfineMissingRoot(t *testing.T) {
	_, err := Confine(filepath.Join(t.TempDir(), "gone"), "a.mp4")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.NoError(t, IsRegularFile(file))
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "missing")))
}
