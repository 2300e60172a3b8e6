// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package frontend is the HTTP client for the remote document service: the
// mobile session endpoints, the desktop challenge and the timestamp
// authority proxy. The service itself is outside the bridge's control; only
// its wire contract is ours.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eimzo-bridge/pkg/bridgerr"
)

const (
	pathMobileAuth   = "/frontend/mobile/auth"
	pathMobileStatus = "/frontend/mobile/status"
	pathChallenge    = "/frontend/challenge"
	pathTimestamp    = "/frontend/timestamp/pkcs7"
)

// Mobile signing statuses as the service reports them.
const (
	StatusSigned  = 1
	StatusPending = 2
)

// MobileSession bootstraps one phone-based sign attempt.
type MobileSession struct {
	SiteID     string `json:"siteId"`
	DocumentID string `json:"documentId"`
	// The service spells this field "challange"; keep the wire name.
	Challenge string `json:"challange"`
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithHTTP substitutes the underlying HTTP client, for tests and
// custom transports.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL)
	if hc != nil {
		c.http = hc
	}
	return c
}

// MobileAuth requests a mobile auth/sign session.
func (c *Client) MobileAuth(ctx context.Context) (*MobileSession, error) {
	var session MobileSession
	if err := c.postJSON(ctx, pathMobileAuth, nil, &session); err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindMobileAuthFailed, bridgerr.SourceRemote,
			"mobile authentication request failed", err)
	}
	if session.DocumentID == "" {
		return nil, bridgerr.New(bridgerr.KindMobileAuthFailed, bridgerr.SourceRemote,
			"mobile session response carries no documentId")
	}
	return &session, nil
}

// MobileStatus polls the signing status for a mobile session.
func (c *Client) MobileStatus(ctx context.Context, documentID string) (int, error) {
	form := url.Values{"documentId": {documentID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+pathMobileStatus, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, bridgerr.Wrap(bridgerr.KindNetworkError, bridgerr.SourceRemote, "bad status request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		Status int `json:"status"`
	}
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	return out.Status, nil
}

// Challenge fetches the desktop GUID challenge to be signed.
func (c *Client) Challenge(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+pathChallenge, nil)
	if err != nil {
		return "", bridgerr.Wrap(bridgerr.KindNetworkError, bridgerr.SourceRemote, "bad challenge request", err)
	}
	var out struct {
		Challenge string `json:"challenge"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Challenge == "" {
		return "", bridgerr.New(bridgerr.KindNetworkError, bridgerr.SourceRemote,
			"challenge response is empty")
	}
	return out.Challenge, nil
}

// Timestamp exchanges a PKCS#7 blob for a timestamped version. Implements
// signer.Timestamper.
func (c *Client) Timestamp(ctx context.Context, pkcs7B64 string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+pathTimestamp, strings.NewReader(pkcs7B64))
	if err != nil {
		return "", bridgerr.Wrap(bridgerr.KindNetworkError, bridgerr.SourceRemote, "bad timestamp request", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	var out struct {
		PKCS7B64 string `json:"pkcs7b64"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.PKCS7B64 == "" {
		return "", bridgerr.New(bridgerr.KindNetworkError, bridgerr.SourceRemote,
			"timestamp response carries no pkcs7b64")
	}
	return out.PKCS7B64, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return bridgerr.Wrap(bridgerr.KindNetworkError, bridgerr.SourceRemote,
			"document service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return bridgerr.New(bridgerr.KindNetworkError, bridgerr.SourceRemote,
			fmt.Sprintf("document service returned HTTP %d for %s", resp.StatusCode, req.URL.Path))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return bridgerr.Wrap(bridgerr.KindNetworkError, bridgerr.SourceRemote,
			"invalid JSON from document service", err)
	}
	return nil
}
