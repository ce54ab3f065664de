// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "codexd.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		server: {
			port: 8787
			host: "127.0.0.1"
		}
		codex: {
			home: "/tmp/codex-home"
			binary: "codex"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/tmp/codex-home", cfg.Codex.Home)
	assert.Equal(t, "codex", cfg.Codex.Binary)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// HJSON-specific features: comments, unquoted keys, trailing commas.
	configContent := `{
		// This is a comment
		server: {
			port: 9000,
		}
		# Hash comment
		transport: {
			mode: app-server
			app_server_url: ws://localhost:4000
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "app-server", cfg.Transport.Mode)
	assert.Equal(t, "ws://localhost:4000", cfg.Transport.AppServerURL)
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "/nonexistent/codexd.hjson")
	assert.Error(t, err)
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codexd.hjson")
	require.NoError(t, os.WriteFile(path, []byte("{ not valid hjson :::"), 0644))

	_, err := NewLoader().Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	configContent := `{}`
	dir := t.TempDir()
	path := filepath.Join(dir, "codexd.hjson")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0644))

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1455, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "codex", cfg.Codex.Binary)
	assert.Equal(t, "local-cli", cfg.Transport.Mode)
	assert.Equal(t, 10000, cfg.Events.History.MaxEvents)
	assert.Equal(t, "1h", cfg.Events.History.MaxAge)
}

func TestLoader_LoadWithDefaults_PreservesExplicitValues(t *testing.T) {
	configContent := `{ server: { port: 6000 }, codex: { binary: "my-codex" } }`
	dir := t.TempDir()
	path := filepath.Join(dir, "codexd.hjson")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0644))

	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, "my-codex", cfg.Codex.Binary)
}

func TestLoader_FindConfig_NotFound(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.Chdir(dir))

	_, err = NewLoader().FindConfig()
	assert.Error(t, err)
}

func TestLoader_FindConfig_FindsHJSON(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codexd.hjson"), []byte("{}"), 0644))
	require.NoError(t, os.Chdir(dir))

	path, err := NewLoader().FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "codexd.hjson")
}
