// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Command eimzoctl exercises the E-IMZO signing bridge from a terminal:
// certificate enumeration, document signing and agent diagnostics.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"eimzo-bridge/pkg/applog"
	"eimzo-bridge/pkg/capiws"
	"eimzo-bridge/pkg/certstore"
	"eimzo-bridge/pkg/config"
	"eimzo-bridge/pkg/flow"
	"eimzo-bridge/pkg/frontend"
	"eimzo-bridge/pkg/signer"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "eimzoctl",
	Short:         "E-IMZO local signing bridge",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if _, err := applog.Init("eimzoctl"); err != nil {
		log.Printf("file logging unavailable: %v", err)
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config")
	rootCmd.AddCommand(listCmd, signCmd, attachCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newBridge wires the full stack from configuration: transport, store,
// operations, frontend client and the flow facade.
func newBridge(cmd *cobra.Command) (*flow.Bridge, *capiws.Client, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	client := capiws.NewClient(cfg.Agent.URL)
	if err := client.APIKey(cmd.Context(), cfg.Agent.APIKeys, cfg.HandshakePolicy()); err != nil {
		return nil, nil, nil, err
	}

	front := frontend.NewClient(cfg.Frontend.BaseURL)
	var tsa signer.Timestamper
	if cfg.Frontend.Timestamp {
		tsa = front
	}
	store := certstore.NewStore(client)
	ops := signer.NewOperations(client, signer.NewMemoryKeyCache(), tsa)
	return flow.New(store, ops, front), client, cfg, nil
}
