// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import (
	"context"
	"log"
	"sync"
	"time"

	"eimzo-bridge/pkg/applog"
	"eimzo-bridge/pkg/bridgerr"
	"eimzo-bridge/pkg/frontend"
)

const (
	// DeepLinkScheme hands the signing request off to the companion app.
	DeepLinkScheme = "eimzo://sign?qc="

	pollInterval = 1000 * time.Millisecond
)

// MobileSignature is the session handle for one phone-based sign attempt.
// It lives until polling terminates.
type MobileSignature struct {
	DocumentID string
	HashCode   string
	QRCode     string
}

// SignMobile bootstraps a mobile sign session: challenge issuance, QR hash
// derivation and the deep-link handoff. The deep link is an OS-level
// navigation; whether it succeeded cannot be observed from here.
func (b *Bridge) SignMobile(ctx context.Context, text string) (*MobileSignature, error) {
	session, err := b.front.MobileAuth(ctx)
	if err != nil {
		return nil, bridgerr.Normalize(err)
	}
	hashCode, qrCode, err := MakeQRCode(session.SiteID, session.DocumentID, text)
	if err != nil {
		return nil, err
	}
	b.openDeepLink(qrCode)
	return &MobileSignature{
		DocumentID: session.DocumentID,
		HashCode:   hashCode,
		QRCode:     qrCode,
	}, nil
}

// AuthMobile bootstraps a mobile authentication session, signing the
// service-issued challenge instead of caller data.
func (b *Bridge) AuthMobile(ctx context.Context) (*MobileSignature, error) {
	session, err := b.front.MobileAuth(ctx)
	if err != nil {
		return nil, bridgerr.Normalize(err)
	}
	hashCode, qrCode, err := MakeQRCode(session.SiteID, session.DocumentID, session.Challenge)
	if err != nil {
		return nil, err
	}
	b.openDeepLink(qrCode)
	return &MobileSignature{
		DocumentID: session.DocumentID,
		HashCode:   hashCode,
		QRCode:     qrCode,
	}, nil
}

func (b *Bridge) openDeepLink(qrCode string) {
	uri := DeepLinkScheme + qrCode
	if err := b.deeplink.Open(uri); err != nil {
		// Fire-and-forget by contract; the poll loop decides the outcome.
		log.Printf("[flow] deep link invocation failed uri=%s: %v", applog.SanitizeURI(uri), err)
	}
}

// PollStatus polls the mobile session status once per second until it
// terminates. Status 1 fires onSuccess and stops; status 2 keeps polling;
// anything else, and any request error, stops quietly. WithPollFailureHook
// makes the give-up observable. The returned handle cancels the loop on
// navigation-away or teardown.
func (b *Bridge) PollStatus(documentID string, onSuccess func()) (cancel func()) {
	done := make(chan struct{})
	var once sync.Once
	cancel = func() { once.Do(func() { close(done) }) }

	go func() {
		ticker := b.clock.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				status, err := b.front.MobileStatus(context.Background(), documentID)
				if err != nil {
					b.reportPollFailure(err)
					return
				}
				switch status {
				case frontend.StatusSigned:
					onSuccess()
					return
				case frontend.StatusPending:
					// Keep polling.
				default:
					b.reportPollFailure(bridgerr.New(bridgerr.KindMobileAuthFailed, bridgerr.SourceRemote,
						"mobile session ended without a signature"))
					return
				}
			}
		}
	}()
	return cancel
}

func (b *Bridge) reportPollFailure(err error) {
	if b.pollFailure != nil {
		b.pollFailure(err)
		return
	}
	log.Printf("[flow] mobile polling stopped: %v", err)
}
