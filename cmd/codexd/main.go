// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tacogips/codexd/internal/config"
	"github.com/tacogips/codexd/internal/daemon"
)

var version = "0.1"

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "status":
			os.Exit(runStatus())
		case "stop":
			os.Exit(runStop())
		}
	}

	var (
		configPath  string
		configDir   string
		host        string
		port        int
		detach      bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&configDir, "config-dir", "", "Directory for daemon state (default: ~/.config/codex-agent)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&detach, "detach", false, "Spawn the daemon in the background and wait for it to answer /health")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("codexd %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	config.ApplyEnv(cfg)
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	if detach {
		os.Exit(runDetached(cfg.Server.Port))
	}

	server, err := daemon.NewServer(cfg, configDir)
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path == "" {
		found, err := loader.FindConfig()
		if err != nil {
			// No config file is fine; defaults plus env cover the
			// common local setup.
			return config.Default(), nil
		}
		path = found
	}
	log.Printf("Using config: %s", path)
	return loader.LoadWithDefaults(context.Background(), path)
}

// runDetached re-execs this binary in the background without -detach and
// polls its health endpoint until it answers or the budget elapses.
func runDetached(port int) int {
	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if a == "-detach" || a == "--detach" {
			continue
		}
		args = append(args, a)
	}

	cmd := exec.Command(os.Args[0], args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: spawn daemon: %v\n", err)
		return 1
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	if !daemon.HealthPoll(url, daemon.HealthPollBudget, daemon.HealthPollInterval) {
		fmt.Fprintf(os.Stderr, "Error: daemon did not answer %s\n", url)
		return 1
	}
	fmt.Printf("codexd running (pid %d, port %d)\n", cmd.Process.Pid, port)
	return 0
}

func pidFilePath() string {
	return filepath.Join(daemon.DefaultConfigDir(), "daemon.pid")
}

func runStatus() int {
	lc := daemon.NewLifecycle(pidFilePath())
	status, pf, err := lc.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	switch status {
	case daemon.StatusRunning:
		fmt.Printf("running (pid %d, port %d, mode %s)\n", pf.PID, pf.Port, pf.Mode)
	case daemon.StatusStale:
		fmt.Printf("stale (pid %d is gone)\n", pf.PID)
	default:
		fmt.Println("stopped")
	}
	return 0
}

func runStop() int {
	lc := daemon.NewLifecycle(pidFilePath())
	status, pf, err := lc.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if status != daemon.StatusRunning {
		fmt.Println("codexd is not running")
		return 0
	}
	if err := syscall.Kill(pf.PID, syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "Error: signal pid %d: %v\n", pf.PID, err)
		return 1
	}
	fmt.Printf("sent SIGTERM to pid %d\n", pf.PID)
	return 0
}
