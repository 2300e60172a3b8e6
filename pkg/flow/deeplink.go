// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import (
	"os/exec"
	"runtime"
)

// DeepLinker invokes an OS-level URL scheme navigation.
type DeepLinker interface {
	Open(uri string) error
}

// ExecDeepLinker opens the URI with the platform launcher. Start, not Run:
// the handoff is fire-and-forget and must never block the flow.
type ExecDeepLinker struct{}

func (ExecDeepLinker) Open(uri string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", uri)
	case "darwin":
		cmd = exec.Command("open", uri)
	default:
		cmd = exec.Command("xdg-open", uri)
	}
	return cmd.Start()
}

// NopDeepLinker swallows deep links, for tests and headless runs.
type NopDeepLinker struct{}

func (NopDeepLinker) Open(string) error { return nil }
