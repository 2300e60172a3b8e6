// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package version

const (
	CurrentVersion = "0.3.1"

	// Minimum E-IMZO agent version the bridge is known to work with.
	MinAgentMajor = 3
	MinAgentMinor = 37
)

var (
	// Overridable at build time with -ldflags:
	// -X eimzo-bridge/pkg/version.BuildCommit=<hash>
	// -X eimzo-bridge/pkg/version.BuildDate=<YYYY-MM-DDTHH:MM:SSZ>
	BuildCommit = "local"
	BuildDate   = "unknown"
)
