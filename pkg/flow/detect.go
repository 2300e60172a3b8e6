// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import "strings"

// DeviceDetector decides which signing transport serves the current
// environment. Injectable so both flows are testable without any notion of
// "current device".
type DeviceDetector interface {
	IsMobile() bool
}

// mobileTokens is the fixed set of OS/browser markers the heuristic matches
// against. Substring matching on a user agent is best effort, not a
// guarantee.
var mobileTokens = []string{
	"android", "webos", "iphone", "ipad", "ipod", "blackberry",
	"windows phone", "opera mini", "iemobile", "mobile",
}

// UserAgentDetector sniffs a browser user-agent string.
type UserAgentDetector struct {
	UserAgent string
}

func (d UserAgentDetector) IsMobile() bool {
	ua := strings.ToLower(d.UserAgent)
	for _, token := range mobileTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

// StaticDetector pins the transport choice, mainly for tests and the CLI.
type StaticDetector bool

func (d StaticDetector) IsMobile() bool { return bool(d) }

func defaultDetector() DeviceDetector {
	// The CLI runs on desktops; browsers embedding the bridge substitute a
	// UserAgentDetector.
	return StaticDetector(false)
}
