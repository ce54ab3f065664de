// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"strconv"
)

// Default returns a Config with every default applied, for running with
// no config file at all.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// ApplyEnv overlays the CODEX_* environment variables onto cfg.
// Environment values win over file values.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("CODEX_HOME"); v != "" {
		cfg.Codex.Home = v
	}
	if v := os.Getenv("CODEX_AGENT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CODEX_AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CODEX_AGENT_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("CODEX_AGENT_TRANSPORT"); v != "" {
		cfg.Transport.Mode = v
	}
	if v := os.Getenv("CODEX_AGENT_APP_SERVER_URL"); v != "" {
		cfg.Transport.AppServerURL = v
	}
}
