// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package signer

import (
	"encoding/base64"
	"fmt"

	"eimzo-bridge/pkg/bridgerr"

	"github.com/smallstep/pkcs7"
)

// SignatureInfo is what a quick parse of a returned PKCS#7 blob yields.
type SignatureInfo struct {
	SignerSerial string
	SignerCN     string
	Detached     bool
}

// InspectPKCS7 decodes and parses a Base64 PKCS#7 blob returned by the
// agent. Used as a sanity gate before the signature is handed to the
// document service, and to recover the signer serial when the agent omits
// signer_serial_number.
func InspectPKCS7(pkcs7B64 string) (*SignatureInfo, error) {
	der, err := base64.StdEncoding.DecodeString(pkcs7B64)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindSigningFailed, bridgerr.SourceLocal,
			"signature is not valid base64", err)
	}
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindSigningFailed, bridgerr.SourceLocal,
			"signature is not a valid PKCS#7 structure", err)
	}
	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, bridgerr.New(bridgerr.KindSigningFailed, bridgerr.SourceLocal,
			"PKCS#7 structure carries no signer certificate")
	}
	return &SignatureInfo{
		SignerSerial: fmt.Sprintf("%X", signer.SerialNumber),
		SignerCN:     signer.Subject.CommonName,
		Detached:     len(p7.Content) == 0,
	}, nil
}
