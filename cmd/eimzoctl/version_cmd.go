// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eimzo-bridge/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show bridge and agent versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("eimzoctl %s (commit %s, built %s)\n",
			version.CurrentVersion, version.BuildCommit, version.BuildDate)

		_, client, _, err := newBridge(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		major, minor, err := client.Version(cmd.Context())
		if err != nil {
			fmt.Println("agent: unreachable")
			return nil
		}
		fmt.Printf("agent: E-IMZO %d.%d", major, minor)
		if err := client.CheckVersion(cmd.Context(), version.MinAgentMajor, version.MinAgentMinor); err != nil {
			fmt.Printf(" (outdated, %d.%d required)", version.MinAgentMajor, version.MinAgentMinor)
		}
		fmt.Println()
		return nil
	},
}
