// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package flow

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eimzo-bridge/pkg/bridgerr"
	"eimzo-bridge/pkg/capiws"
	"eimzo-bridge/pkg/certstore"
	"eimzo-bridge/pkg/frontend"
	"eimzo-bridge/pkg/signer"

	"github.com/jonboulle/clockwork"
)

func TestAuthDesktopSignsChallenge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/frontend/challenge", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"challenge":"3f0c-guid"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	raw := capiws.RawCert{Alias: "cn=A,1.2.860.3.16.1.2=111,validto=01.01.2099", SerialNumber: "SER-1"}
	agent := desktopAgent([]capiws.RawCert{raw})
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	bridge := New(
		certstore.NewStoreWithClock(agent, clock),
		signer.NewOperations(agent, signer.NewMemoryKeyCache(), nil),
		frontend.NewClient(srv.URL),
		WithClock(clock),
		WithDetector(StaticDetector(false)),
	)

	res, err := bridge.Auth(context.Background(), nil, "111")
	if err != nil {
		t.Fatalf("Auth failed: %v", err)
	}
	if res.IsMobile {
		t.Fatal("desktop auth must not route to mobile")
	}
	if res.Challenge != "3f0c-guid" || res.PKCS7 == "" {
		t.Fatalf("auth result: %+v", res)
	}
	create := agent.find("create_pkcs7")
	if create == nil {
		t.Fatal("challenge was never signed")
	}
	if dec, _ := base64.StdEncoding.DecodeString(create.Arguments[0]); string(dec) != "3f0c-guid" {
		t.Fatalf("signed payload decodes to %q", dec)
	}
}

func TestAuthDesktopWithoutCertificateOrUID(t *testing.T) {
	bridge := testBridge(desktopAgent(nil))
	_, err := bridge.Auth(context.Background(), nil, "")
	if !bridgerr.IsKind(err, bridgerr.KindCertificateRequired) {
		t.Fatalf("got %v", err)
	}
}
