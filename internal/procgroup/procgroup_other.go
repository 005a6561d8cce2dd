// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import "os/exec"

func set(*exec.Cmd) {}

// interrupt has no portable equivalent; Terminate falls through to kill
// once the grace period expires.
func interrupt(*exec.Cmd) error { return nil }

func kill(cmd *exec.Cmd) error { return cmd.Process.Kill() }
