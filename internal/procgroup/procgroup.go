// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts ffmpeg in its own process group and tears the
// whole group down on cancellation, so filter helpers spawned by ffmpeg
// never outlive a superseded build.
package procgroup

import (
	"os/exec"
	"time"

	"github.com/ManuGH/vcompose/internal/metrics"
)

// Set configures cmd to start as the leader of a new process group.
// Must be called before cmd.Start.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate asks the group to stop, escalating to a hard kill after grace.
// waitCh must deliver the result of cmd.Wait; Terminate always drains it and
// returns that result. Nil commands and unstarted processes are ignored.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.ObserveProcessSignal("interrupt", outcome(interrupt(cmd)))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
	}

	metrics.ObserveProcessSignal("kill", outcome(kill(cmd)))
	return <-waitCh
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "sent"
}
