// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package config loads the bridge configuration: agent endpoint, apikey
// allow-list pairs, document-service location and policy toggles.
package config

import (
	"fmt"
	"os"
	"strings"

	"eimzo-bridge/pkg/capiws"

	"gopkg.in/yaml.v3"
)

// Well-known apikey pairs issued for local origins. Environment-specific
// pairs from the config file are appended after these.
var defaultAPIKeys = []string{
	"localhost", "96D0C1491615C82B9A54D9989779DF825B690748224C2B04F500F370D51827CE2644D8D4A82C18184D73AB8530BB8ED537269603F61DB0D03D2104ABF789970B",
	"127.0.0.1", "A7BCFA5D490B351BE0754130DF03A068F855DB4333D43921125B9CF2670EF6A40370C646B90401955E1F7BC9CDBF59CE0B2C5467D820BE189C845D0B79CFC96F",
	"null", "E0A205EC4E7B78BBB56AFF83A733A1BB9FD39D562E67978CC5E7D73B0951DB1954595A20672A63332535E13CC6EC1E1FC8857BB09E0855D7E76E411B6FA16E9D",
}

type Agent struct {
	URL string `yaml:"url"`
	// APIKeys alternate domain identifiers and signed keys; pairing is
	// positional.
	APIKeys       []string `yaml:"api_keys"`
	OnUnavailable string   `yaml:"on_unavailable"`
}

type Frontend struct {
	BaseURL   string `yaml:"base_url"`
	Timestamp bool   `yaml:"timestamp"`
}

type Config struct {
	Agent    Agent    `yaml:"agent"`
	Frontend Frontend `yaml:"frontend"`
}

func Default() *Config {
	return &Config{
		Agent: Agent{
			URL:           capiws.DefaultAgentURL,
			APIKeys:       append([]string(nil), defaultAPIKeys...),
			OnUnavailable: string(capiws.HandshakeSilent),
		},
		Frontend: Frontend{
			BaseURL:   "https://eimzo.telecomsoft.uz",
			Timestamp: true,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(&file)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig mirrors Config with optionality preserved, so an omitted field
// keeps its default instead of zeroing it.
type fileConfig struct {
	Agent struct {
		URL           string   `yaml:"url"`
		APIKeys       []string `yaml:"api_keys"`
		OnUnavailable string   `yaml:"on_unavailable"`
	} `yaml:"agent"`
	Frontend struct {
		BaseURL   string `yaml:"base_url"`
		Timestamp *bool  `yaml:"timestamp"`
	} `yaml:"frontend"`
}

func (c *Config) merge(o *fileConfig) {
	if strings.TrimSpace(o.Agent.URL) != "" {
		c.Agent.URL = strings.TrimSpace(o.Agent.URL)
	}
	if len(o.Agent.APIKeys) > 0 {
		c.Agent.APIKeys = append(c.Agent.APIKeys, o.Agent.APIKeys...)
	}
	if strings.TrimSpace(o.Agent.OnUnavailable) != "" {
		c.Agent.OnUnavailable = strings.TrimSpace(o.Agent.OnUnavailable)
	}
	if strings.TrimSpace(o.Frontend.BaseURL) != "" {
		c.Frontend.BaseURL = strings.TrimSpace(o.Frontend.BaseURL)
	}
	if o.Frontend.Timestamp != nil {
		c.Frontend.Timestamp = *o.Frontend.Timestamp
	}
}

func (c *Config) validate() error {
	if len(c.Agent.APIKeys)%2 != 0 {
		return fmt.Errorf("agent.api_keys must hold domain/key pairs, got %d entries", len(c.Agent.APIKeys))
	}
	switch capiws.HandshakePolicy(c.Agent.OnUnavailable) {
	case capiws.HandshakeSilent, capiws.HandshakeSurface:
	default:
		return fmt.Errorf("agent.on_unavailable must be %q or %q", capiws.HandshakeSilent, capiws.HandshakeSurface)
	}
	return nil
}

// HandshakePolicy returns the parsed policy; validate guarantees it is one
// of the two named values.
func (c *Config) HandshakePolicy() capiws.HandshakePolicy {
	return capiws.HandshakePolicy(c.Agent.OnUnavailable)
}
