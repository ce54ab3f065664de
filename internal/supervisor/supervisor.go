// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/tacogips/codexd/internal/rollout"
)

// Supervisor tracks every subprocess spawned on behalf of a session in a
// registry keyed by a locally-generated uuid.
type Supervisor struct {
	binary string

	mu    sync.Mutex
	procs map[string]*process
}

// New creates a Supervisor that spawns binary (the codex CLI) for every
// invocation.
func New(binary string) *Supervisor {
	return &Supervisor{binary: binary, procs: make(map[string]*process)}
}

// Handle is returned by the async spawn variants: a process id plus a
// line-by-line feed and a completion signal.
type Handle struct {
	ID     string
	Lines  <-chan *rollout.Line
	Done   <-chan struct{}
	sup    *Supervisor
}

// Result waits for the process to exit and returns its final record.
func (h *Handle) Result() Record {
	<-h.Done
	return h.sup.mustGet(h.ID).record()
}

func (s *Supervisor) register(command, prompt string) *process {
	p := &process{id: uuid.NewString(), command: command, prompt: prompt}
	s.mu.Lock()
	s.procs[p.id] = p
	s.mu.Unlock()
	return p
}

func (s *Supervisor) mustGet(id string) *process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[id]
}

// spawnLines wires a buffered channel to a process's onLine callback; the
// channel is closed once the process exits.
func spawnLines(p *process) <-chan *rollout.Line {
	ch := make(chan *rollout.Line, 256)
	p.onLine = func(l *rollout.Line) {
		select {
		case ch <- l:
		default:
		}
	}
	go func() {
		<-p.done()
		close(ch)
	}()
	return ch
}

// execArgs builds the `exec --json <common> <prompt>` invocation.
func execArgs(prompt string, opts Opts) []string {
	args := append([]string{"exec", "--json"}, opts.commonFlags()...)
	return append(args, prompt)
}

// resumeArgs builds the `resume <sessionId> <common> [prompt]` invocation.
func resumeArgs(sessionID, prompt string, opts Opts) []string {
	args := append([]string{"resume", sessionID}, opts.commonFlags()...)
	if prompt != "" {
		args = append(args, prompt)
	}
	return args
}

// forkArgs builds the `fork <sessionId> [--nth-message N] <common>
// [prompt]` invocation. nthMessage is emitted only when requested.
func forkArgs(sessionID string, nthMessage int, prompt string, opts Opts) []string {
	args := []string{"fork", sessionID}
	if nthMessage > 0 {
		args = append(args, "--nth-message", strconv.Itoa(nthMessage))
	}
	args = append(args, opts.commonFlags()...)
	if prompt != "" {
		args = append(args, prompt)
	}
	return args
}

// SpawnExec runs `codex exec` synchronously, blocking until it exits and
// returning every parsed rollout line plus the final exit code.
func (s *Supervisor) SpawnExec(ctx context.Context, prompt string, opts Opts) (int, []*rollout.Line, error) {
	p := s.register("exec", prompt)
	var lines []*rollout.Line
	var mu sync.Mutex
	p.onLine = func(l *rollout.Line) {
		mu.Lock()
		lines = append(lines, l)
		mu.Unlock()
	}

	if err := p.start(ctx, s.binary, execArgs(prompt, opts), opts.Cwd, false); err != nil {
		return 1, nil, err
	}
	<-p.done()

	rec := p.record()
	code := 0
	if rec.ExitCode != nil {
		code = *rec.ExitCode
	}
	return code, lines, nil
}

// SpawnExecStream runs `codex exec` asynchronously, returning a Handle
// whose Lines channel streams rollout lines as they are produced.
func (s *Supervisor) SpawnExecStream(ctx context.Context, prompt string, opts Opts) (*Handle, error) {
	p := s.register("exec", prompt)
	lines := spawnLines(p)

	if err := p.start(ctx, s.binary, execArgs(prompt, opts), opts.Cwd, false); err != nil {
		return nil, err
	}
	return &Handle{ID: p.id, Lines: lines, Done: p.done(), sup: s}, nil
}

// SpawnResume reattaches to an existing session id, passing an optional
// follow-up prompt as the last command-line argument. Stdio is fully
// piped so the caller can write input later.
func (s *Supervisor) SpawnResume(ctx context.Context, sessionID, prompt string, opts Opts) (*Handle, error) {
	p := s.register("resume", prompt)
	lines := spawnLines(p)

	if err := p.start(ctx, s.binary, resumeArgs(sessionID, prompt, opts), opts.Cwd, true); err != nil {
		return nil, err
	}
	return &Handle{ID: p.id, Lines: lines, Done: p.done(), sup: s}, nil
}

// SpawnFork starts a new session forked from sessionID, optionally at a
// specific message.
func (s *Supervisor) SpawnFork(ctx context.Context, sessionID string, nthMessage int, prompt string, opts Opts) (*Handle, error) {
	p := s.register("fork", prompt)
	lines := spawnLines(p)

	if err := p.start(ctx, s.binary, forkArgs(sessionID, nthMessage, prompt, opts), opts.Cwd, true); err != nil {
		return nil, err
	}
	return &Handle{ID: p.id, Lines: lines, Done: p.done(), sup: s}, nil
}

// List returns every tracked process, running or not.
func (s *Supervisor) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.procs))
	for _, p := range s.procs {
		out = append(out, p.record())
	}
	return out
}

// Get returns the record for id, if tracked.
func (s *Supervisor) Get(id string) (Record, bool) {
	s.mu.Lock()
	p, ok := s.procs[id]
	s.mu.Unlock()
	if !ok {
		return Record{}, false
	}
	return p.record(), true
}

// WriteInput writes data to the running process's stdin.
func (s *Supervisor) WriteInput(id string, data []byte) error {
	p := s.mustGet(id)
	if p == nil {
		return errNotRunning
	}
	return p.writeInput(data)
}

// Kill sends SIGTERM to the process group for id, if still running.
func (s *Supervisor) Kill(id string) error {
	p := s.mustGet(id)
	if p == nil {
		return nil
	}
	return p.kill()
}

// KillAll terminates every currently running process.
func (s *Supervisor) KillAll() {
	s.mu.Lock()
	procs := make([]*process, 0, len(s.procs))
	for _, p := range s.procs {
		procs = append(procs, p)
	}
	s.mu.Unlock()
	for _, p := range procs {
		_ = p.kill()
	}
}

// Prune removes every non-running process from the registry and reports
// how many were removed.
func (s *Supervisor) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.procs {
		if p.record().Status != StatusRunning {
			delete(s.procs, id)
			n++
		}
	}
	return n
}
