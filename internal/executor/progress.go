// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package executor

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	Frame     int64
	FPS       float64
	OutTimeUs int64
	TotalSize int64
	Speed     string
	Done      bool
}

func (p Progress) advanced(prev Progress) bool {
	return p.OutTimeUs > prev.OutTimeUs || p.TotalSize > prev.TotalSize || p.Frame > prev.Frame || p.Done
}

// parseProgress emits one Progress per "progress=" line until r is
// exhausted. Once stop is closed it discards the rest of r so the writer
// never blocks.
func parseProgress(r io.Reader, ch chan<- Progress, stop <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	var current Progress

	for scanner.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)

		switch key {
		case "frame":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.Frame = v
			}
		case "fps":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				current.FPS = v
			}
		case "out_time_us", "out_time_ms":
			// ffmpeg reports microseconds under both keys.
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.OutTimeUs = v
			}
		case "total_size":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.TotalSize = v
			}
		case "speed":
			current.Speed = val
		case "progress":
			current.Done = val == "end"
			select {
			case ch <- current:
			case <-stop:
				_, _ = io.Copy(io.Discard, r)
				return
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}
