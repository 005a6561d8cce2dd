// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil keeps served and deleted media paths inside a session root.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves outside its root.
var ErrOutsideRoot = errors.New("path escapes root")

// Confine resolves target (absolute or relative to root) and fails unless
// the physical location sits underneath the physical root. Symlinks on both
// sides are followed, so a link inside root pointing elsewhere is rejected.
func Confine(root, target string) (string, error) {
	if strings.Contains(target, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", target)
	}
	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}

	full := filepath.Clean(target)
	if !filepath.IsAbs(full) {
		if full == ".." || strings.HasPrefix(full, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
		}
		full = filepath.Join(realRoot, full)
	}

	real, err := resolve(full)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(realRoot, real)
	if err != nil {
		return "", fmt.Errorf("relate %s to root: %w", real, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	return real, nil
}

// IsRegularFile reports an error unless path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		return abs, nil
	}
	return real, nil
}

// resolve follows symlinks of an existing path. For a missing path only the
// parent is resolved; a missing parent falls back to the lexical path.
func resolve(full string) (string, error) {
	if _, err := os.Lstat(full); err == nil {
		real, err := filepath.EvalSymlinks(full)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", full, err)
		}
		return real, nil
	}
	dir := filepath.Dir(full)
	real, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return filepath.Join(real, filepath.Base(full)), nil
	}
	if _, statErr := os.Stat(dir); statErr == nil {
		return "", fmt.Errorf("resolve parent %s: %w", dir, err)
	}
	return full, nil
}
