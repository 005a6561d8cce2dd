// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package orchestrator

import (
	"github.com/google/renameio/v2"
)

// linkLatest atomically points link at target (relative to the link's directory).
func linkLatest(target, link string) error {
	return renameio.Symlink(target, link)
}

// writeManifest replaces path with data durably (fsync + rename).
func writeManifest(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}
