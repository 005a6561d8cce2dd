// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ManuGH/vcompose/internal/fsutil"
	"github.com/ManuGH/vcompose/internal/timeline"
)

var errProtocolSource = errors.New("protocol sources are not allowed")

// ffmpeg protocols that take a "name:" prefix without "//".
var protocolPrefixes = []string{
	"async", "cache", "concat", "concatf", "crypto", "data", "fd", "file",
	"ftp", "gopher", "hls", "http", "https", "md5", "pipe", "rtmp", "rtp",
	"rtsp", "srt", "subfile", "tcp", "tee", "tls", "udp", "unix",
}

// resolveSources confines every clip source to the media root. Relative
// sources are taken relative to the root. The returned timeline carries the
// resolved absolute paths.
func (s *Server) resolveSources(tl timeline.Timeline) (timeline.Timeline, error) {
	return tl.MapSources(func(p string) (string, error) {
		if isProtocol(p) {
			return "", fmt.Errorf("%w: %s", errProtocolSource, p)
		}
		resolved, err := fsutil.Confine(s.cfg.MediaRoot, p)
		if err != nil {
			return "", fmt.Errorf("source %s: %w", p, err)
		}
		if err := fsutil.IsRegularFile(resolved); err != nil {
			return "", fmt.Errorf("source %s: %w", p, err)
		}
		return resolved, nil
	})
}

// relativeSources turns resolved sources back into media-root relative
// paths so server paths are not echoed to clients.
func (s *Server) relativeSources(tl timeline.Timeline) timeline.Timeline {
	root, err := filepath.Abs(s.cfg.MediaRoot)
	if err != nil {
		return tl
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}
	out, _ := tl.MapSources(func(p string) (string, error) {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel), nil
		}
		return p, nil
	})
	return out
}

func isProtocol(p string) bool {
	if strings.Contains(p, "://") {
		return true
	}
	name, _, ok := strings.Cut(p, ":")
	if !ok {
		return false
	}
	return slices.Contains(protocolPrefixes, strings.ToLower(name))
}
