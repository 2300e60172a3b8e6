// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package applog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

func MaskID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	if len(v) <= 10 {
		return v
	}
	return v[:6] + "..." + v[len(v)-4:]
}

func Digest12(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:12]
}

func SecretMeta(label string, raw string) string {
	return fmt.Sprintf("%s[len=%d sha12=%s]", label, len(raw), Digest12(raw))
}

func BytesMeta(label string, raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s[len=%d sha12=%s]", label, len(raw), hex.EncodeToString(sum[:])[:12])
}

// SanitizeURI redacts signing payloads and key material from loggable URIs
// (deep links, agent endpoints with query parameters).
func SanitizeURI(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return truncate(raw, 180)
	}

	q := u.Query()
	sensitive := map[string]struct{}{
		"qc":        {},
		"challenge": {},
		"dat":       {},
		"data":      {},
		"pkcs7":     {},
		"keyid":     {},
		"key":       {},
		"pin":       {},
		"password":  {},
	}
	for k, values := range q {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, ok := sensitive[lk]; !ok {
			continue
		}
		for i, v := range values {
			values[i] = SecretMeta(lk, v)
		}
		q[k] = values
	}
	u.RawQuery = q.Encode()
	return truncate(u.String(), 180)
}

func truncate(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max] + "..."
}
