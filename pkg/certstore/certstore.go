// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package certstore turns raw agent enumeration responses into typed,
// parsed certificate records.
package certstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"eimzo-bridge/pkg/bridgerr"
	"eimzo-bridge/pkg/capiws"

	"github.com/jonboulle/clockwork"
)

// Type selects the RPC plugin namespace backing a key container.
type Type string

const (
	TypePFX     Type = "pfx"
	TypeCertkey Type = "certkey"
)

// OIDPinfl is the alias attribute key carrying the holder's national
// identity number (PINFL/INN).
const OIDPinfl = "1.2.860.3.16.1.2"

// overdueGrace extends validto by one day before a certificate counts as
// expired, matching how issuers stamp the last valid day.
const overdueGrace = 24 * time.Hour

// Cert identifies one signing key container. Disk/Path/Name/Alias are opaque
// agent-side location fields and must be passed back verbatim when the
// container is re-selected in a later call.
type Cert struct {
	Disk         string
	Path         string
	Name         string
	Alias        string
	SerialNumber string
	ParsedAlias  map[string]string
	Type         Type
	Overdue      bool
}

// INN returns the holder's identity number from the alias attributes.
func (c Cert) INN() string {
	if v := c.ParsedAlias[OIDPinfl]; v != "" {
		return v
	}
	return c.ParsedAlias["uid"]
}

func (c Cert) CommonName() string   { return c.ParsedAlias["cn"] }
func (c Cert) Organization() string { return c.ParsedAlias["o"] }

// ValidTo parses the expiry attribute. The zero time is returned when the
// attribute is absent or malformed.
func (c Cert) ValidTo() time.Time {
	t, _ := ParseValidDate(c.ParsedAlias["validto"])
	return t
}

// ParseAlias parses the vendor comma-separated KEY=value attribute string
// into a lower-cased-key map. It is total: malformed input yields a partial
// or empty map, never an error. Entries without '=' are skipped and on
// duplicate keys the last occurrence wins.
func ParseAlias(alias string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(alias, ",") {
		eq := strings.Index(pair, "=")
		if eq <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(pair[:eq]))
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(pair[eq+1:])
	}
	return out
}

// ParseValidDate accepts the agent's "DD.MM.YYYY[ HH:MM:SS]" date format:
// anything after the first space is dropped, the remainder reinterpreted as
// year, month, day.
func ParseValidDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, bridgerr.New(bridgerr.KindUnknown, bridgerr.SourceLocal, "empty date")
	}
	datePart := raw
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		datePart = raw[:i]
	}
	t, err := time.Parse("02.01.2006", datePart)
	if err != nil {
		return time.Time{}, bridgerr.Wrap(bridgerr.KindUnknown, bridgerr.SourceLocal,
			"unparseable certificate date "+datePart, err)
	}
	return t, nil
}

// Caller is the transport surface the store needs.
type Caller interface {
	Call(ctx context.Context, req capiws.Request) (*capiws.Response, error)
}

// Store enumerates key containers over the agent transport.
type Store struct {
	rpc   Caller
	clock clockwork.Clock
}

func NewStore(rpc Caller) *Store {
	return &Store{rpc: rpc, clock: clockwork.NewRealClock()}
}

// NewStoreWithClock substitutes the clock used for overdue derivation.
func NewStoreWithClock(rpc Caller, clock clockwork.Clock) *Store {
	return &Store{rpc: rpc, clock: clock}
}

// List enumerates one container type. Agent unavailability propagates to the
// caller; retry policy does not live here.
func (s *Store) List(ctx context.Context, t Type) ([]Cert, error) {
	resp, err := s.rpc.Call(ctx, capiws.Request{
		Plugin: string(t),
		Name:   "list_all_certificates",
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, bridgerr.FromAgentReason(resp.Reason)
	}
	certs := make([]Cert, 0, len(resp.Certificates))
	for _, raw := range resp.Certificates {
		certs = append(certs, s.toCert(raw, t))
	}
	return certs, nil
}

// ListAll merges both backing stores, valid certificates first.
func (s *Store) ListAll(ctx context.Context) ([]Cert, error) {
	pfx, err := s.List(ctx, TypePFX)
	if err != nil {
		return nil, err
	}
	certkey, err := s.List(ctx, TypeCertkey)
	if err != nil {
		return nil, err
	}
	all := append(pfx, certkey...)
	sort.SliceStable(all, func(i, j int) bool {
		return !all[i].Overdue && all[j].Overdue
	})
	return all, nil
}

// toCert attaches parsed attributes and derives the serial and overdue
// state. A missing agent serial degrades to the raw alias string so the
// container stays addressable.
func (s *Store) toCert(raw capiws.RawCert, t Type) Cert {
	parsed := ParseAlias(raw.Alias)
	serial := raw.SerialNumber
	if serial == "" {
		serial = raw.Alias
	}
	c := Cert{
		Disk:         raw.Disk,
		Path:         raw.Path,
		Name:         raw.Name,
		Alias:        raw.Alias,
		SerialNumber: serial,
		ParsedAlias:  parsed,
		Type:         t,
	}
	if validTo, err := ParseValidDate(parsed["validto"]); err == nil {
		c.Overdue = s.clock.Now().After(validTo.Add(overdueGrace))
	}
	return c
}
