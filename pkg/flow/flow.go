// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package flow orchestrates the two signing transports behind one logical
// operation: the desktop RPC flow (certificate selection, key load, PKCS#7
// creation, optional timestamp) and the mobile QR/deeplink + polling flow.
package flow

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"eimzo-bridge/pkg/bridgerr"
	"eimzo-bridge/pkg/certstore"
	"eimzo-bridge/pkg/frontend"
	"eimzo-bridge/pkg/signer"

	"github.com/jonboulle/clockwork"
)

// Bridge is the function-shaped boundary the document UI depends on.
type Bridge struct {
	store    *certstore.Store
	ops      *signer.Operations
	front    *frontend.Client
	detect   DeviceDetector
	deeplink DeepLinker
	clock    clockwork.Clock

	// pollFailure, when set, observes why a polling loop gave up. The
	// default is the silent policy: polling just stops.
	pollFailure func(error)

	mu              sync.Mutex
	preferredSerial string
}

type Option func(*Bridge)

func WithClock(c clockwork.Clock) Option       { return func(b *Bridge) { b.clock = c } }
func WithDetector(d DeviceDetector) Option     { return func(b *Bridge) { b.detect = d } }
func WithDeepLinker(d DeepLinker) Option       { return func(b *Bridge) { b.deeplink = d } }
func WithPollFailureHook(h func(error)) Option { return func(b *Bridge) { b.pollFailure = h } }
func WithPreferredSerial(serial string) Option {
	return func(b *Bridge) { b.preferredSerial = serial }
}

func New(store *certstore.Store, ops *signer.Operations, front *frontend.Client, opts ...Option) *Bridge {
	b := &Bridge{
		store:    store,
		ops:      ops,
		front:    front,
		detect:   defaultDetector(),
		deeplink: &ExecDeepLinker{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetPreferredSerial remembers the serial number the user picked so later
// resolutions reuse the same certificate.
func (b *Bridge) SetPreferredSerial(serial string) {
	b.mu.Lock()
	b.preferredSerial = serial
	b.mu.Unlock()
}

// Certificates lists every key container regardless of backing store.
func (b *Bridge) Certificates(ctx context.Context) ([]certstore.Cert, error) {
	certs, err := b.store.ListAll(ctx)
	if err != nil {
		return nil, bridgerr.Normalize(err)
	}
	return certs, nil
}

// ResolveCertificate picks the signing certificate for an identity number.
// A remembered serial wins; otherwise a single match is taken as-is and
// ties break on the latest validto. No usable match distinguishes "none
// found" from "all expired".
func (b *Bridge) ResolveCertificate(ctx context.Context, uid string) (certstore.Cert, error) {
	all, err := b.store.ListAll(ctx)
	if err != nil {
		return certstore.Cert{}, bridgerr.Normalize(err)
	}

	matched := make([]certstore.Cert, 0, len(all))
	for _, c := range all {
		if uid == "" || c.INN() == uid {
			matched = append(matched, c)
		}
	}

	b.mu.Lock()
	preferred := b.preferredSerial
	b.mu.Unlock()
	if preferred != "" {
		for _, c := range matched {
			if c.SerialNumber == preferred {
				return c, nil
			}
		}
	}

	usable := matched[:0:0]
	expiredOnly := true
	for _, c := range matched {
		if c.Overdue {
			continue
		}
		expiredOnly = false
		usable = append(usable, c)
	}
	switch {
	case len(matched) == 0:
		return certstore.Cert{}, bridgerr.New(bridgerr.KindCertificateNotFound, bridgerr.SourceLocal,
			"no certificate found for this identity")
	case len(usable) == 0 && expiredOnly:
		return certstore.Cert{}, bridgerr.New(bridgerr.KindCertificateExpired, bridgerr.SourceLocal,
			"all matching certificates have expired")
	case len(usable) == 1:
		return usable[0], nil
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].ValidTo().After(usable[j].ValidTo())
	})
	return usable[0], nil
}

// SignResult is the outcome of the transport-routing Sign: a PKCS#7 blob on
// desktop, a mobile session handle on phones.
type SignResult struct {
	PKCS7  string
	Mobile *MobileSignature
}

// Sign routes one logical signing request through whichever transport fits
// the current device.
func (b *Bridge) Sign(ctx context.Context, text string, cert *certstore.Cert, timestampMode bool) (*SignResult, error) {
	if b.detect.IsMobile() {
		m, err := b.SignMobile(ctx, text)
		if err != nil {
			return nil, err
		}
		return &SignResult{Mobile: m}, nil
	}
	pkcs7, err := b.SignDesktop(ctx, text, cert, timestampMode)
	if err != nil {
		return nil, err
	}
	return &SignResult{PKCS7: pkcs7}, nil
}

// SignDesktop runs the desktop flow: resolve certificate, load key, create
// the PKCS#7, optionally timestamp. Any failure aborts the whole flow; no
// partial result is returned.
func (b *Bridge) SignDesktop(ctx context.Context, text string, cert *certstore.Cert, timestampMode bool) (string, error) {
	resolved, err := b.requireCert(ctx, cert)
	if err != nil {
		return "", err
	}
	pkcs7, err := b.ops.Sign(ctx, resolved, signer.EncodePayload(text), false, timestampMode)
	if err != nil {
		return "", bridgerr.Normalize(err)
	}
	return pkcs7, nil
}

// SignDocument signs a document object or string without timestamping.
// This and SignPDF are the sole surface the document-management UI uses.
func (b *Bridge) SignDocument(ctx context.Context, cert certstore.Cert, document interface{}) (string, error) {
	text, ok := document.(string)
	if !ok {
		raw, err := json.Marshal(document)
		if err != nil {
			return "", bridgerr.Wrap(bridgerr.KindUnknown, bridgerr.SourceLocal,
				"document is not serializable", err)
		}
		text = string(raw)
	}
	pkcs7, err := b.ops.Sign(ctx, cert, signer.EncodePayload(text), false, false)
	if err != nil {
		return "", bridgerr.Normalize(err)
	}
	return pkcs7, nil
}

// SignPDF signs pre-encoded Base64 PDF bytes.
func (b *Bridge) SignPDF(ctx context.Context, cert certstore.Cert, pdfB64 string) (string, error) {
	pkcs7, err := b.ops.Sign(ctx, cert, pdfB64, false, false)
	if err != nil {
		return "", bridgerr.Normalize(err)
	}
	return pkcs7, nil
}

// Attach appends the resolved certificate's signature to an existing
// attached PKCS#7 container.
func (b *Bridge) Attach(ctx context.Context, pkcs7B64 string, cert *certstore.Cert) (string, error) {
	resolved, err := b.requireCert(ctx, cert)
	if err != nil {
		return "", err
	}
	out, err := b.ops.Attach(ctx, resolved, pkcs7B64, false)
	if err != nil {
		return "", bridgerr.Normalize(err)
	}
	return out, nil
}

func (b *Bridge) requireCert(ctx context.Context, cert *certstore.Cert) (certstore.Cert, error) {
	if cert != nil {
		return *cert, nil
	}
	resolved, err := b.ResolveCertificate(ctx, "")
	if err != nil {
		if bridgerr.IsKind(err, bridgerr.KindCertificateNotFound) {
			return certstore.Cert{}, bridgerr.New(bridgerr.KindCertificateRequired, bridgerr.SourceLocal,
				"a certificate is required for desktop signing")
		}
		return certstore.Cert{}, err
	}
	return resolved, nil
}
