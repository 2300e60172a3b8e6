// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package certstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"eimzo-bridge/pkg/capiws"

	"github.com/jonboulle/clockwork"
)

type fakeCaller struct {
	responses map[string]*capiws.Response
	err       error
	calls     []capiws.Request
}

func (f *fakeCaller) Call(_ context.Context, req capiws.Request) (*capiws.Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[req.Plugin+"/"+req.Name]; ok {
		return resp, nil
	}
	return &capiws.Response{Success: false, Reason: "unexpected call " + req.Name}, nil
}

func TestParseAliasRoundTrip(t *testing.T) {
	pairs := map[string]string{
		"cn":        "OLIM KARIMOV",
		"o":         "TELECOMSOFT",
		"validfrom": "01.01.2024",
		"validto":   "01.01.2026",
		OIDPinfl:    "31234567890123",
	}
	alias := ""
	for k, v := range pairs {
		if alias != "" {
			alias += ","
		}
		alias += k + "=" + v
	}
	got := ParseAlias(alias)
	for k, v := range pairs {
		if got[k] != v {
			t.Fatalf("key %q: got %q want %q", k, got[k], v)
		}
	}
}

func TestParseAliasEdgeCases(t *testing.T) {
	cases := []struct {
		name  string
		alias string
		want  map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"upper-cased keys", "CN=A,O=B", map[string]string{"cn": "A", "o": "B"}},
		{"entry without equals dropped", "cn=A,garbage,o=B", map[string]string{"cn": "A", "o": "B"}},
		{"duplicate keys last wins", "cn=first,cn=second", map[string]string{"cn": "second"}},
		{"leading equals dropped", "=x,cn=A", map[string]string{"cn": "A"}},
		{"value keeps inner equals", "cn=a=b", map[string]string{"cn": "a=b"}},
		{"whitespace trimmed", "  cn = A ,o= B", map[string]string{"cn": "A", "o": "B"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseAlias(tc.alias)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("key %q: got %q want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseAliasNeverPanics(t *testing.T) {
	// Certificate metadata quality varies by issuer; the parser must stay
	// total for arbitrary garbage.
	inputs := []string{
		"", ",", ",,,,", "=", "==", "=,=", "\x00\xff", "кирилица=да",
		",=,==,cn==,", "a=1,a=2,a=3,b", "\t\n", "𝔘𝔫𝔦𝔠𝔬𝔡𝔢=𝔳",
	}
	for i := 0; i < 200; i++ {
		inputs = append(inputs, fmt.Sprintf("k%d=v%d,junk%d", i, i, i))
	}
	for _, in := range inputs {
		_ = ParseAlias(in)
	}
}

func TestParseValidDate(t *testing.T) {
	got, err := ParseValidDate("02.03.2025 11:22:33")
	if err != nil {
		t.Fatalf("ParseValidDate failed: %v", err)
	}
	want := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if _, err := ParseValidDate("not-a-date"); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := ParseValidDate(""); err == nil {
		t.Fatal("expected error for empty date")
	}
}

func TestOverdueDerivation(t *testing.T) {
	raw := capiws.RawCert{
		Disk: "C:", Path: "/keys", Name: "key.pfx",
		Alias:        "cn=TEST,validto=01.01.2020",
		SerialNumber: "AA01",
	}
	fc := &fakeCaller{responses: map[string]*capiws.Response{
		"pfx/list_all_certificates": {Success: true, Certificates: []capiws.RawCert{raw}},
	}}

	// One day past expiry plus grace.
	clock := clockwork.NewFakeClockAt(time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC))
	store := NewStoreWithClock(fc, clock)
	certs, err := store.List(context.Background(), TypePFX)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !certs[0].Overdue {
		t.Fatal("certificate past validto+1d must be overdue")
	}

	// Future validto stays valid.
	clock = clockwork.NewFakeClockAt(time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC))
	store = NewStoreWithClock(fc, clock)
	certs, err = store.List(context.Background(), TypePFX)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if certs[0].Overdue {
		t.Fatal("certificate before validto must not be overdue")
	}
}

func TestOverdueGraceDay(t *testing.T) {
	raw := capiws.RawCert{Alias: "validto=01.01.2020", SerialNumber: "AA01"}
	fc := &fakeCaller{responses: map[string]*capiws.Response{
		"pfx/list_all_certificates": {Success: true, Certificates: []capiws.RawCert{raw}},
	}}
	// Inside the one-day grace window.
	clock := clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC))
	store := NewStoreWithClock(fc, clock)
	certs, err := store.List(context.Background(), TypePFX)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if certs[0].Overdue {
		t.Fatal("certificate inside the grace day must not be overdue")
	}
}

func TestToCertSerialFallsBackToAlias(t *testing.T) {
	raw := capiws.RawCert{Alias: "cn=NO SERIAL,validto=01.01.2099"}
	fc := &fakeCaller{responses: map[string]*capiws.Response{
		"certkey/list_all_certificates": {Success: true, Certificates: []capiws.RawCert{raw}},
	}}
	store := NewStoreWithClock(fc, clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	certs, err := store.List(context.Background(), TypeCertkey)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if certs[0].SerialNumber != raw.Alias {
		t.Fatalf("serial fallback: got %q want the raw alias", certs[0].SerialNumber)
	}
	if certs[0].Type != TypeCertkey {
		t.Fatalf("type: got %q", certs[0].Type)
	}
}

func TestINNFallsBackToUID(t *testing.T) {
	c := Cert{ParsedAlias: map[string]string{"uid": "123456789"}}
	if c.INN() != "123456789" {
		t.Fatalf("INN uid fallback: got %q", c.INN())
	}
	c.ParsedAlias[OIDPinfl] = "31234567890123"
	if c.INN() != "31234567890123" {
		t.Fatalf("INN must prefer the PINFL OID: got %q", c.INN())
	}
}

func TestListAllMergesAndSortsValidFirst(t *testing.T) {
	fc := &fakeCaller{responses: map[string]*capiws.Response{
		"pfx/list_all_certificates": {Success: true, Certificates: []capiws.RawCert{
			{Alias: "cn=OLD,validto=01.01.2000", SerialNumber: "OLD"},
		}},
		"certkey/list_all_certificates": {Success: true, Certificates: []capiws.RawCert{
			{Alias: "cn=NEW,validto=01.01.2099", SerialNumber: "NEW"},
		}},
	}}
	store := NewStoreWithClock(fc, clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	all, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both stores merged, got %d", len(all))
	}
	if all[0].SerialNumber != "NEW" || all[1].SerialNumber != "OLD" {
		t.Fatalf("valid certificates must sort first: %q,%q", all[0].SerialNumber, all[1].SerialNumber)
	}
}

func TestListPropagatesAgentError(t *testing.T) {
	fc := &fakeCaller{err: fmt.Errorf("agent down")}
	store := NewStore(fc)
	if _, err := store.List(context.Background(), TypePFX); err == nil {
		t.Fatal("agent unavailability must propagate, not be swallowed")
	}
}
