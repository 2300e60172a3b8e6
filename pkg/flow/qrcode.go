// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strings"

	"eimzo-bridge/pkg/bridgerr"
)

// MakeQRCode derives the vendor QR payload for a mobile session. The result
// is deterministic for the same inputs: hashCode is the upper-case SHA-256
// of the signed text, qrCode concatenates siteId, documentId and hashCode
// with a CRC32 suffix so the companion app can detect truncated scans.
func MakeQRCode(siteID, documentID, text string) (hashCode, qrCode string, err error) {
	if strings.TrimSpace(siteID) == "" || strings.TrimSpace(documentID) == "" {
		return "", "", bridgerr.New(bridgerr.KindMobileQRInvalidFormat, bridgerr.SourceRemote,
			"mobile session is missing siteId or documentId")
	}
	sum := sha256.Sum256([]byte(text))
	hashCode = strings.ToUpper(hex.EncodeToString(sum[:]))
	code := siteID + documentID + hashCode
	qrCode = code + fmt.Sprintf("%08X", crc32.ChecksumIEEE([]byte(code)))
	return hashCode, qrCode, nil
}

// SplitHash cuts a hash into four chunks for QR row rendering. The last
// chunk absorbs any remainder.
func SplitHash(hash string) []string {
	chunk := len(hash) / 4
	if chunk == 0 {
		return []string{hash}
	}
	out := make([]string, 0, 4)
	for i := 0; i < 3; i++ {
		out = append(out, hash[i*chunk:(i+1)*chunk])
	}
	out = append(out, hash[3*chunk:])
	return out
}
