// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eimzo-bridge/pkg/applog"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed key containers (PFX files and hardware tokens)",
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, client, _, err := newBridge(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		certs, err := bridge.Certificates(cmd.Context())
		if err != nil {
			return err
		}
		if len(certs) == 0 {
			fmt.Println("no certificates found")
			return nil
		}
		for _, c := range certs {
			state := "valid"
			if c.Overdue {
				state = "expired"
			}
			fmt.Printf("%-8s %-10s serial=%s inn=%s cn=%q validto=%s\n",
				c.Type, state, applog.MaskID(c.SerialNumber), c.INN(),
				c.CommonName(), c.ParsedAlias["validto"])
		}
		return nil
	},
}
