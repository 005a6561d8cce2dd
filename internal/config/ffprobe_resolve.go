// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveFFprobeBin returns the ffprobe binary to use.
//
// Resolution order:
//  1. Explicit ffprobeBin (VCOMPOSE_FFPROBE_BIN or ffmpeg.ffprobe_bin)
//  2. Derived from a concrete ffmpeg path (.../ffmpeg -> .../ffprobe) if it exists
//  3. "ffprobe" from PATH
func ResolveFFprobeBin(ffprobeBin, ffmpegBin string) string {
	return resolveFFprobeBinWithStat(ffprobeBin, ffmpegBin, os.Stat)
}

func resolveFFprobeBinWithStat(ffprobeBin, ffmpegBin string, stat func(string) (os.FileInfo, error)) string {
	if p := strings.TrimSpace(ffprobeBin); p != "" {
		return p
	}

	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if !strings.ContainsRune(ffmpegBin, filepath.Separator) && !strings.ContainsRune(ffmpegBin, '/') {
		return "ffprobe"
	}
	base := filepath.Base(ffmpegBin)
	if base != "ffmpeg" && base != "ffmpeg.exe" {
		return "ffprobe"
	}

	candidate := filepath.Join(filepath.Dir(ffmpegBin), strings.Replace(base, "ffmpeg", "ffprobe", 1))
	if fi, err := stat(candidate); err == nil && fi != nil && !fi.IsDir() {
		return candidate
	}
	return "ffprobe"
}
