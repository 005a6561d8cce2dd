// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

// Names of the newest-preview link and its manifest inside OutputDir.
const (
	LatestLink     = "latest.mp4"
	LatestManifest = "latest.json"
)

// Manifest describes the newest delivered preview.
type Manifest struct {
	BuildID    string    `json:"build_id"`
	Generation uint64    `json:"generation"`
	File       string    `json:"file"`
	SizeBytes  int64     `json:"size_bytes"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func (o *Orchestrator) publishLatest(out *Outcome) error {
	m := Manifest{
		BuildID:    out.BuildID,
		Generation: out.Generation,
		File:       filepath.Base(out.Result.File),
		SizeBytes:  out.Result.SizeBytes,
		DurationMs: out.Result.Duration.Milliseconds(),
		CreatedAt:  out.Finished.UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := linkLatest(m.File, filepath.Join(o.cfg.OutputDir, LatestLink)); err != nil {
		return fmt.Errorf("link latest preview: %w", err)
	}
	if err := writeManifest(filepath.Join(o.cfg.OutputDir, LatestManifest), data); err != nil {
		return fmt.Errorf("write preview manifest: %w", err)
	}
	return nil
}
