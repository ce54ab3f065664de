// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tacogips/codexd/internal/config"
	"github.com/tacogips/codexd/internal/events"
	"github.com/tacogips/codexd/internal/index"
	"github.com/tacogips/codexd/internal/repo"
	"github.com/tacogips/codexd/internal/rollout"
	"github.com/tacogips/codexd/internal/runtime"
	"github.com/tacogips/codexd/internal/supervisor"
)

// Server owns the daemon's process-wide state: the HTTP listener, the
// event bus, the new-session directory watcher, the supervisor and the
// pid-file.
type Server struct {
	cfg       *config.Config
	configDir string

	bus       events.EventBus
	sup       *supervisor.Supervisor
	idx       *index.Index
	runner    *runtime.Runner
	watcher   *rollout.Watcher
	janitor   *supervisor.Janitor
	lifecycle *Lifecycle
	appServer *AppServerClient

	httpServer *http.Server

	mu      sync.Mutex
	stopped bool
}

// DefaultConfigDir is `~/.config/codex-agent/`.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/codex-agent"
	}
	return filepath.Join(home, ".config", "codex-agent")
}

// NewServer wires the daemon's components from cfg. configDir holds the
// JSON repositories and daemon.pid; an empty value means the default.
func NewServer(cfg *config.Config, configDir string) (*Server, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	var maxAge time.Duration
	if cfg.Events.History.MaxAge != "" {
		if d, err := time.ParseDuration(cfg.Events.History.MaxAge); err == nil {
			maxAge = d
		}
	}
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    maxAge,
	})

	sup := supervisor.New(cfg.Codex.Binary)
	idx := index.New(cfg.Codex.Home)
	runner := runtime.NewRunner(sup, idx)

	s := &Server{
		cfg:       cfg,
		configDir: configDir,
		bus:       bus,
		sup:       sup,
		idx:       idx,
		runner:    runner,
		lifecycle: NewLifecycle(filepath.Join(configDir, "daemon.pid")),
	}

	watcher, err := rollout.NewWatcher(rollout.Config{
		OnNewSession: func(path string) {
			bus.Publish(context.Background(), events.Event{
				Type:    events.EventDaemonNewSession,
				Payload: map[string]interface{}{"path": path},
			})
		},
		OnError: func(path string, err error) {
			log.Printf("[daemon] watcher error on %s: %v", path, err)
		},
	})
	if err != nil {
		bus.Close()
		return nil, err
	}
	s.watcher = watcher

	deps := Dependencies{
		Index:       idx,
		Runner:      runner,
		Supervisor:  sup,
		EventBus:    bus,
		Groups:      repo.NewGroupRepository(filepath.Join(configDir, "groups.json")),
		Queues:      repo.NewQueueRepository(filepath.Join(configDir, "queues.json")),
		Bookmarks:   repo.NewBookmarkRepository(filepath.Join(configDir, "bookmarks.json")),
		FileChanges: repo.NewFileChangeIndex(filepath.Join(configDir, "file-changes-index.json")),
		Tokens:      repo.NewTokenRepository(filepath.Join(configDir, "tokens.json")),
		StaticToken: cfg.Server.Token,
		Mode:        s.mode(),
		Port:        cfg.Server.Port,
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: NewRouter(deps),
	}

	if cfg.Codex.JanitorInterval != "" {
		if d, err := time.ParseDuration(cfg.Codex.JanitorInterval); err == nil && d > 0 {
			s.janitor = supervisor.NewJanitor(sup, d)
		}
	}

	return s, nil
}

func (s *Server) mode() string {
	if s.cfg.Transport.Mode == "app-server" {
		return string(ModeAppServer)
	}
	return string(ModeHTTP)
}

// Start performs the staleness check, writes the pid-file, arms the
// new-session directory watch, optionally dials the upstream app-server,
// and begins serving in the background. It refuses to start when a
// running daemon already answers its health endpoint.
func (s *Server) Start(ctx context.Context) error {
	status, pf, err := s.lifecycle.Status()
	if err != nil {
		return err
	}
	if status == StatusRunning && pf != nil {
		url := fmt.Sprintf("http://127.0.0.1:%d/health", pf.Port)
		if HealthPoll(url, time.Second, HealthPollInterval) {
			return ErrAlreadyRunning
		}
		// pid alive but health dead: some unrelated process reuses the
		// pid; fall through and overwrite.
	}

	if err := s.lifecycle.Write(s.cfg.Server.Port, Mode(s.mode())); err != nil {
		return fmt.Errorf("write pid-file: %w", err)
	}

	sessionsDir := filepath.Join(s.cfg.Codex.Home, "sessions")
	if err := s.watcher.WatchDirectory(sessionsDir); err != nil {
		log.Printf("[daemon] cannot watch %s: %v", sessionsDir, err)
	}

	if s.cfg.Transport.Mode == "app-server" && s.cfg.Transport.AppServerURL != "" {
		client, err := DialAppServer(ctx, s.cfg.Transport.AppServerURL)
		if err != nil {
			log.Printf("[daemon] app-server unavailable: %v", err)
		} else {
			s.appServer = client
		}
	}

	if s.janitor != nil {
		s.janitor.Start(ctx)
	}

	go func() {
		log.Printf("[daemon] listening on %s", s.httpServer.Addr)
		var err error
		if s.cfg.Server.TLSCert != "" && s.cfg.Server.TLSKey != "" {
			err = s.httpServer.ListenAndServeTLS(s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Printf("[daemon] server error: %v", err)
		}
	}()

	return nil
}

// Run starts the server and blocks until ctx is cancelled, then stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(context.Background())
}

// Stop tears everything down: the watcher state first,
// then the optional upstream app-server client, then the HTTP server;
// finally the supervisor's children, the bus, and the pid-file.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.watcher.Stop()

	if s.appServer != nil {
		if err := s.appServer.Close(); err != nil {
			log.Printf("[daemon] app-server close: %v", err)
		}
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[daemon] http shutdown: %v", err)
	}

	if s.janitor != nil {
		s.janitor.Stop()
	}
	s.sup.KillAll()
	s.bus.Close()

	if err := s.lifecycle.Remove(); err != nil {
		log.Printf("[daemon] pid-file remove: %v", err)
	}
	log.Printf("[daemon] shutdown complete")
	return nil
}
