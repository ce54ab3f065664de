// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the codexd
// daemon.
package config

// Config is the root configuration structure for codexd.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Codex     CodexConfig     `json:"codex"`
	Transport TransportConfig `json:"transport"`
	Events    EventsConfig    `json:"events"`
	Index     IndexConfig     `json:"index"`
}

// ServerConfig configures the HTTP+WebSocket daemon.
type ServerConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Token   string `json:"token"`    // static bearer token; empty enables managed-token auth
	TLSCert string `json:"tls_cert"` // path to TLS certificate file (enables HTTPS if both set)
	TLSKey  string `json:"tls_key"`  // path to TLS private key file
}

// CodexConfig locates the tool binary and its rollout home.
type CodexConfig struct {
	Home            string `json:"home"`
	Binary          string `json:"binary"`
	JanitorInterval string `json:"janitor_interval"` // optional; empty disables the scratch-dir janitor
}

// TransportConfig selects how sessions are driven.
type TransportConfig struct {
	Mode         string `json:"mode"` // "local-cli" | "app-server"
	AppServerURL string `json:"app_server_url"`
}

// EventsConfig configures the in-memory event bus.
type EventsConfig struct {
	History EventsHistoryConfig `json:"history"`
}

// EventsHistoryConfig bounds the event bus's retained history.
type EventsHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// IndexConfig locates the optional read-only SQLite session index.
type IndexConfig struct {
	SqlitePath string `json:"sqlite_path"`
}
