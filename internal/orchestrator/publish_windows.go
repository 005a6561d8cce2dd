// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package orchestrator

import (
	"os"
	"path/filepath"
)

// linkLatest is a no-op on Windows; clients read latest.json instead.
func linkLatest(string, string) error { return nil }

func writeManifest(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".latest-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
