// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultRPCTimeout bounds every app-server call.
const DefaultRPCTimeout = 10 * time.Second

// ErrAppServerClosed rejects calls made after the client is closed, and
// resolves every call still pending when the connection drops.
var ErrAppServerClosed = errors.New("daemon: app-server connection closed")

// appServerRequest is one client→server RPC frame.
type appServerRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// appServerResponse is one server→client RPC frame.
type appServerResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *appServerError `json:"error,omitempty"`
}

type appServerError struct {
	Message string `json:"message"`
}

type pendingCall struct {
	ch chan appServerResponse
}

// AppServerClient is the optional upstream WebSocket bridge selected by
// the app-server transport mode. Calls are correlated by a
// per-request id; a dropped connection rejects every pending call rather
// than retrying silently.
type AppServerClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]pendingCall
	closed  bool
}

// DialAppServer connects to the app-server at url and starts the
// response-dispatch loop.
func DialAppServer(ctx context.Context, url string) (*AppServerClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial app-server %s: %w", url, err)
	}
	c := &AppServerClient{
		conn:    conn,
		pending: make(map[string]pendingCall),
	}
	go c.readLoop()
	return c, nil
}

// Call sends one RPC and waits for its response. When ctx carries no
// deadline, DefaultRPCTimeout applies.
func (c *AppServerClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRPCTimeout)
		defer cancel()
	}

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		raw = data
	}

	id := uuid.NewString()
	call := pendingCall{ch: make(chan appServerResponse, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrAppServerClosed
	}
	c.pending[id] = call
	c.mu.Unlock()

	req := appServerRequest{ID: id, Method: method, Params: raw}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp, ok := <-call.ch:
		if !ok {
			return nil, ErrAppServerClosed
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("app-server %s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.drop(id)
		return nil, fmt.Errorf("app-server %s: %w", method, ctx.Err())
	}
}

func (c *AppServerClient) drop(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *AppServerClient) readLoop() {
	for {
		var resp appServerResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.rejectAll()
			return
		}
		c.mu.Lock()
		call, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			call.ch <- resp
		}
	}
}

// rejectAll resolves every pending call with a closed-channel rejection.
func (c *AppServerClient) rejectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, call := range c.pending {
		close(call.ch)
		delete(c.pending, id)
	}
}

// Close tears the connection down; pending calls are rejected by the
// read loop's exit.
func (c *AppServerClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.conn.Close()
}
