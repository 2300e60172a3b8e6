// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import (
	"strings"
	"testing"

	"eimzo-bridge/pkg/bridgerr"
)

func TestMakeQRCodeDeterministic(t *testing.T) {
	hash1, qr1, err := MakeQRCode("site1", "doc-1", "hello")
	if err != nil {
		t.Fatalf("MakeQRCode failed: %v", err)
	}
	hash2, qr2, _ := MakeQRCode("site1", "doc-1", "hello")
	if hash1 != hash2 || qr1 != qr2 {
		t.Fatal("same inputs must derive the same QR payload")
	}

	if len(hash1) != 64 {
		t.Fatalf("hash length: got %d", len(hash1))
	}
	if hash1 != strings.ToUpper(hash1) {
		t.Fatalf("hash must be upper-case hex: %q", hash1)
	}
	if !strings.HasPrefix(qr1, "site1doc-1"+hash1) {
		t.Fatalf("qr layout: %q", qr1)
	}
	// Fixed-width CRC32 suffix.
	if len(qr1) != len("site1doc-1")+len(hash1)+8 {
		t.Fatalf("qr suffix length: %q", qr1)
	}
}

func TestMakeQRCodeDiffersPerText(t *testing.T) {
	hashA, _, _ := MakeQRCode("site1", "doc-1", "hello")
	hashB, _, _ := MakeQRCode("site1", "doc-1", "hello!")
	if hashA == hashB {
		t.Fatal("different texts must not collide")
	}
}

func TestMakeQRCodeRejectsIncompleteSession(t *testing.T) {
	for _, tc := range []struct{ site, doc string }{
		{"", "doc-1"},
		{"site1", ""},
		{"  ", "doc-1"},
	} {
		_, _, err := MakeQRCode(tc.site, tc.doc, "hello")
		if !bridgerr.IsKind(err, bridgerr.KindMobileQRInvalidFormat) {
			t.Fatalf("site=%q doc=%q: got %v", tc.site, tc.doc, err)
		}
	}
}

func TestSplitHash(t *testing.T) {
	chunks := SplitHash("AAAABBBBCCCCDDDD")
	want := []string{"AAAA", "BBBB", "CCCC", "DDDD"}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: got %q", i, chunks[i])
		}
	}

	// Remainder goes to the last chunk.
	chunks = SplitHash("AAAABBBBCCCCDDDDEE")
	if len(chunks) != 4 || chunks[3] != "DDDDEE" {
		t.Fatalf("remainder chunking: %v", chunks)
	}

	// Degenerate input stays whole.
	if chunks := SplitHash("ab"); len(chunks) != 1 || chunks[0] != "ab" {
		t.Fatalf("short input: %v", chunks)
	}
}

func TestUserAgentDetector(t *testing.T) {
	cases := []struct {
		ua     string
		mobile bool
	}{
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36", true},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0", false},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := (UserAgentDetector{UserAgent: tc.ua}).IsMobile(); got != tc.mobile {
			t.Fatalf("ua %q: got %v", tc.ua, got)
		}
	}
}
