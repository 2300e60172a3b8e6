// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"eimzo-bridge/pkg/certstore"
	"eimzo-bridge/pkg/flow"
	"eimzo-bridge/pkg/signer"
)

var (
	signINN    string
	signSerial string
	signOut    string
)

var signCmd = &cobra.Command{
	Use:   "sign <file>",
	Short: "Create a PKCS#7 signature over a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, client, _, err := newBridge(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cert, err := resolveCert(cmd, bridge)
		if err != nil {
			return err
		}

		payload := base64.StdEncoding.EncodeToString(data)
		pkcs7, err := bridge.SignPDF(cmd.Context(), cert, payload)
		if err != nil {
			return err
		}

		if info, err := signer.InspectPKCS7(pkcs7); err == nil {
			fmt.Fprintf(os.Stderr, "signed by %q serial=%s\n", info.SignerCN, info.SignerSerial)
		}
		return writeResult(pkcs7)
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <pkcs7-file>",
	Short: "Append this key's signature to an existing attached PKCS#7",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, client, _, err := newBridge(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cert, err := resolveCert(cmd, bridge)
		if err != nil {
			return err
		}

		pkcs7, err := bridge.Attach(cmd.Context(), strings.TrimSpace(string(raw)), &cert)
		if err != nil {
			return err
		}
		return writeResult(pkcs7)
	},
}

func resolveCert(cmd *cobra.Command, bridge *flow.Bridge) (certstore.Cert, error) {
	if signSerial != "" {
		bridge.SetPreferredSerial(signSerial)
	}
	return bridge.ResolveCertificate(cmd.Context(), signINN)
}

func writeResult(pkcs7 string) error {
	if signOut == "" {
		fmt.Println(pkcs7)
		return nil
	}
	return os.WriteFile(signOut, []byte(pkcs7), 0o644)
}

func init() {
	for _, c := range []*cobra.Command{signCmd, attachCmd} {
		c.Flags().StringVar(&signINN, "inn", "", "select certificate by holder INN/PINFL")
		c.Flags().StringVar(&signSerial, "serial", "", "select certificate by serial number")
		c.Flags().StringVarP(&signOut, "out", "o", "", "write the Base64 PKCS#7 to a file instead of stdout")
	}
}
