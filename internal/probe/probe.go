// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe reads media metadata with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	xlog "github.com/ManuGH/vcompose/internal/log"
)

// maxStderr bounds the diagnostic text carried in errors and logs.
const maxStderr = 4096

// ErrNoStreams is returned when ffprobe reports no playable stream.
var ErrNoStreams = errors.New("ffprobe returned no playable streams")

// Info is the subset of ffprobe output the editor needs.
type Info struct {
	FormatName string
	DurationMs int64
	Width      int
	Height     int
	FPS        float64
	HasVideo   bool
	HasAudio   bool
}

// Prober runs ffprobe.
type Prober struct {
	bin     string
	timeout time.Duration
}

// New returns a Prober for the given ffprobe binary. timeout <= 0 means no
// timeout beyond the caller's context.
func New(bin string, timeout time.Duration) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{bin: bin, timeout: timeout}
}

// Probe inspects path.
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	// #nosec G204 -- binary comes from configuration; path is passed as a single argument
	cmd := exec.CommandContext(ctx, p.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, runErr := cmd.Output()
	info, parseErr := Parse(out)
	if parseErr == nil {
		if runErr != nil {
			logger := xlog.WithComponentFromContext(ctx, "probe")
			logger.Warn().Err(runErr).Str(xlog.FieldPath, path).Str("stderr", truncate(stderr.String())).
				Msg("ffprobe exited non-zero but produced usable output")
		}
		return info, nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("ffprobe %s: %w (stderr: %s)", path, runErr, truncate(stderr.String()))
	}
	return nil, fmt.Errorf("ffprobe %s: %w", path, parseErr)
}

// All probes every path with at most limit concurrent ffprobe processes.
// The first failure cancels the rest.
func (p *Prober) All(ctx context.Context, paths []string, limit int) (map[string]*Info, error) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	var mu sync.Mutex
	out := make(map[string]*Info, len(paths))
	for _, path := range paths {
		g.Go(func() error {
			info, err := p.Probe(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			out[path] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse decodes ffprobe's JSON output.
func Parse(data []byte) (*Info, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoStreams
	}
	var raw probeData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	info := &Info{FormatName: canonicalFormat(raw.Format.FormatName)}
	var streamDuration float64
	for _, s := range raw.Streams {
		if s.CodecName == "" {
			continue
		}
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width, info.Height = s.Width, s.Height
			info.FPS = parseRate(s.AvgFrameRate)
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				streamDuration = d
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !info.HasVideo && !info.HasAudio {
		return nil, ErrNoStreams
	}

	seconds := streamDuration
	if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil && d > 0 {
		seconds = d
	}
	info.DurationMs = int64(math.Round(seconds * 1000))
	return info, nil
}

type probeData struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Duration     string `json:"duration,omitempty"`
		Width        int    `json:"width,omitempty"`
		Height       int    `json:"height,omitempty"`
		AvgFrameRate string `json:"avg_frame_rate,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

func parseRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		v, _ := strconv.ParseFloat(r, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// canonicalFormat picks the first token of ffprobe's comma separated
// format list ("mov,mp4,m4a,3gp,3g2,mj2" -> "mov").
func canonicalFormat(name string) string {
	for _, p := range strings.Split(name, ",") {
		if t := strings.TrimSpace(p); t != "" {
			return t
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
