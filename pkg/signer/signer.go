// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package signer builds key loading and PKCS#7 creation on top of the agent
// transport, with the session-scoped key cache and its single stale-key
// retry.
package signer

import (
	"context"
	"encoding/base64"
	"log"
	"sync"

	"eimzo-bridge/pkg/applog"
	"eimzo-bridge/pkg/bridgerr"
	"eimzo-bridge/pkg/capiws"
	"eimzo-bridge/pkg/certstore"
)

// KeyCache maps a certificate serial number to the ephemeral keyId handle
// the agent returned after a successful unlock. Implementations must be safe
// for concurrent use.
type KeyCache interface {
	Get(serialNumber string) (string, bool)
	Set(serialNumber, keyID string)
	Clear(serialNumber string)
}

// MemoryKeyCache is the default session-scoped cache.
type MemoryKeyCache struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryKeyCache() *MemoryKeyCache {
	return &MemoryKeyCache{m: make(map[string]string)}
}

func (c *MemoryKeyCache) Get(serialNumber string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.m[serialNumber]
	return id, ok
}

func (c *MemoryKeyCache) Set(serialNumber, keyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[serialNumber] = keyID
}

func (c *MemoryKeyCache) Clear(serialNumber string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, serialNumber)
}

// Timestamper exchanges a PKCS#7 blob for a timestamped version. A nil
// Timestamper means timestamping is not configured and the plain signature
// is returned as-is.
type Timestamper interface {
	Timestamp(ctx context.Context, pkcs7B64 string) (string, error)
}

// Caller is the transport surface the operations need.
type Caller interface {
	Call(ctx context.Context, req capiws.Request) (*capiws.Response, error)
}

// Operations drives load_key / create_pkcs7 / append_pkcs7_attached.
type Operations struct {
	rpc   Caller
	cache KeyCache
	tsa   Timestamper
}

func NewOperations(rpc Caller, cache KeyCache, tsa Timestamper) *Operations {
	if cache == nil {
		cache = NewMemoryKeyCache()
	}
	return &Operations{rpc: rpc, cache: cache, tsa: tsa}
}

// LoadKey unlocks the certificate's key container. This is the call behind
// which the agent pops its native password prompt; it resolves only when the
// agent answers, however long the user takes, so callers must not impose a
// timeout of their own.
func (o *Operations) LoadKey(ctx context.Context, cert certstore.Cert) (string, error) {
	args := []string{cert.Disk, cert.Path, cert.Name, cert.Alias}
	if cert.Type == certstore.TypeCertkey {
		args = []string{cert.Disk, cert.Path, cert.Name, cert.SerialNumber}
	}
	resp, err := o.rpc.Call(ctx, capiws.Request{
		Plugin:    string(cert.Type),
		Name:      "load_key",
		Arguments: args,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", bridgerr.FromAgentReason(resp.Reason)
	}
	o.cache.Set(cert.SerialNumber, resp.KeyID)
	log.Printf("[signer] key loaded serial=%s", applog.MaskID(cert.SerialNumber))
	return resp.KeyID, nil
}

// CreatePKCS7 signs a Base64 payload with an unlocked key. Detached
// signatures exclude the payload from the container.
func (o *Operations) CreatePKCS7(ctx context.Context, keyID, payloadB64 string, detached bool) (string, error) {
	mode := "no"
	if detached {
		mode = "yes"
	}
	resp, err := o.rpc.Call(ctx, capiws.Request{
		Plugin:    "pkcs7",
		Name:      "create_pkcs7",
		Arguments: []string{payloadB64, keyID, mode},
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", bridgerr.FromAgentReason(resp.Reason)
	}
	return resp.PKCS7B64, nil
}

// AppendAttached adds this key's signature to a pre-existing attached
// PKCS#7 structure. Not interchangeable with CreatePKCS7: the input here is
// a signature container, not raw payload.
func (o *Operations) AppendAttached(ctx context.Context, keyID, pkcs7B64 string) (string, error) {
	resp, err := o.rpc.Call(ctx, capiws.Request{
		Plugin:    "pkcs7",
		Name:      "append_pkcs7_attached",
		Arguments: []string{pkcs7B64, keyID},
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", bridgerr.FromAgentReason(resp.Reason)
	}
	return resp.PKCS7B64, nil
}

// Sign produces a signature over the payload with the cached-key fast path:
// a cached keyId is tried first and, if the agent rejects it as stale, a
// single fresh LoadKey is attempted before giving up.
func (o *Operations) Sign(ctx context.Context, cert certstore.Cert, payloadB64 string, detached, timestampMode bool) (string, error) {
	pkcs7, err := o.withKey(ctx, cert, func(keyID string) (string, error) {
		return o.CreatePKCS7(ctx, keyID, payloadB64, detached)
	})
	if err != nil {
		return "", err
	}
	return o.maybeTimestamp(ctx, pkcs7, timestampMode)
}

// Attach appends this certificate's signature to an existing attached
// container, same cache policy as Sign.
func (o *Operations) Attach(ctx context.Context, cert certstore.Cert, pkcs7B64 string, timestampMode bool) (string, error) {
	pkcs7, err := o.withKey(ctx, cert, func(keyID string) (string, error) {
		return o.AppendAttached(ctx, keyID, pkcs7B64)
	})
	if err != nil {
		return "", err
	}
	return o.maybeTimestamp(ctx, pkcs7, timestampMode)
}

// withKey runs op with a usable keyId. Exactly one retry: cached handles can
// outlive their agent-side session, so a failure with a cached key triggers
// one fresh load before the error surfaces.
func (o *Operations) withKey(ctx context.Context, cert certstore.Cert, op func(keyID string) (string, error)) (string, error) {
	if keyID, ok := o.cache.Get(cert.SerialNumber); ok {
		out, err := op(keyID)
		if err == nil {
			return out, nil
		}
		if bridgerr.IsKind(err, bridgerr.KindAgentUnavailable) {
			return "", err
		}
		log.Printf("[signer] cached key rejected serial=%s, reloading", applog.MaskID(cert.SerialNumber))
		o.cache.Clear(cert.SerialNumber)
	}
	keyID, err := o.LoadKey(ctx, cert)
	if err != nil {
		return "", err
	}
	return op(keyID)
}

func (o *Operations) maybeTimestamp(ctx context.Context, pkcs7 string, timestampMode bool) (string, error) {
	if !timestampMode || o.tsa == nil {
		return pkcs7, nil
	}
	tst, err := o.tsa.Timestamp(ctx, pkcs7)
	if err != nil {
		return "", err
	}
	return tst, nil
}

// EncodePayload prepares an arbitrary UTF-8 document for create_pkcs7.
func EncodePayload(document string) string {
	return base64.StdEncoding.EncodeToString([]byte(document))
}
