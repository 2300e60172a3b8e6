// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import (
	"context"

	"eimzo-bridge/pkg/bridgerr"
	"eimzo-bridge/pkg/certstore"
	"eimzo-bridge/pkg/signer"
)

// AuthResult is the outcome of an authentication round: a signed challenge
// on desktop, a pending mobile session on phones.
type AuthResult struct {
	IsMobile  bool
	Challenge string
	PKCS7     string
	Mobile    *MobileSignature
}

// Auth proves key possession to the document service. On mobile devices the
// proof is delegated to the companion app and completes asynchronously via
// PollStatus; on desktop the service challenge is signed immediately.
func (b *Bridge) Auth(ctx context.Context, cert *certstore.Cert, uid string) (*AuthResult, error) {
	if b.detect.IsMobile() {
		m, err := b.AuthMobile(ctx)
		if err != nil {
			return nil, err
		}
		return &AuthResult{IsMobile: true, Mobile: m}, nil
	}

	if cert == nil {
		if uid == "" {
			return nil, bridgerr.New(bridgerr.KindCertificateRequired, bridgerr.SourceLocal,
				"a certificate is required for desktop authentication")
		}
		resolved, err := b.ResolveCertificate(ctx, uid)
		if err != nil {
			return nil, err
		}
		cert = &resolved
	}

	challenge, err := b.front.Challenge(ctx)
	if err != nil {
		return nil, bridgerr.Normalize(err)
	}
	pkcs7, err := b.ops.Sign(ctx, *cert, signer.EncodePayload(challenge), false, false)
	if err != nil {
		return nil, bridgerr.Normalize(err)
	}
	return &AuthResult{Challenge: challenge, PKCS7: pkcs7}, nil
}
