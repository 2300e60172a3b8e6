// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Telecomsoft EDO

// Package capiws owns the single WebSocket channel to the local E-IMZO
// agent. It serializes call envelopes, correlates asynchronous responses to
// callers and exposes the one-time apikey handshake every functional call
// depends on.
package capiws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"eimzo-bridge/pkg/bridgerr"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultAgentURL is the plain-WS endpoint the E-IMZO agent listens on.
	DefaultAgentURL = "ws://127.0.0.1:64646/service/cryptapi"
	// DefaultAgentTLSURL is the wss variant used from https origins.
	DefaultAgentTLSURL = "wss://127.0.0.1:64443/service/cryptapi"

	defaultHandshakeTimeout = 8 * time.Second
)

// Request is one RPC envelope. Arguments are positional; their order is part
// of the agent contract.
type Request struct {
	Plugin    string   `json:"plugin,omitempty"`
	Name      string   `json:"name"`
	Arguments []string `json:"arguments,omitempty"`
}

// frame is a Request plus the bridge-assigned correlation id.
type frame struct {
	ID string `json:"id,omitempty"`
	Request
}

// RawCert is one key container exactly as the agent enumerates it.
type RawCert struct {
	Disk         string `json:"disk"`
	Path         string `json:"path"`
	Name         string `json:"name"`
	Alias        string `json:"alias"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// Response carries the union of fields the agent plugins return. Success
// false always comes with a free-text Reason.
type Response struct {
	ID                 string    `json:"id,omitempty"`
	Success            bool      `json:"success"`
	Reason             string    `json:"reason,omitempty"`
	KeyID              string    `json:"keyId,omitempty"`
	PKCS7B64           string    `json:"pkcs7_64,omitempty"`
	SignerSerialNumber string    `json:"signer_serial_number,omitempty"`
	Certificates       []RawCert `json:"certificates,omitempty"`
	Major              string    `json:"major,omitempty"`
	Minor              string    `json:"minor,omitempty"`
}

// HandshakePolicy names what APIKey does when the agent is unreachable.
// Silent keeps the application usable in a degraded state; Surface returns
// the failure to the caller.
type HandshakePolicy string

const (
	HandshakeSilent  HandshakePolicy = "silent"
	HandshakeSurface HandshakePolicy = "surface"
)

type callResult struct {
	resp *Response
	err  error
}

// Client is the single long-lived connection to the local agent. Multiple
// in-flight calls are permitted; responses are matched by correlation id,
// with arrival order as a fallback for agents that do not echo ids.
type Client struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending map[string]chan callResult
	order   []string
}

func NewClient(agentURL string) *Client {
	if strings.TrimSpace(agentURL) == "" {
		agentURL = DefaultAgentURL
	}
	return &Client{
		url: agentURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		pending: make(map[string]chan callResult),
	}
}

// ensureConn dials once and starts the read pump. Callers hold no locks.
func (c *Client) ensureConn() (*websocket.Conn, error) {
	c.mu.Lock()
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		return nil, bridgerr.Wrap(bridgerr.KindAgentUnavailable, bridgerr.SourceLocal,
			"cannot reach E-IMZO agent, is it installed and running?", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost the dial race; keep the winner.
		existing := c.conn
		c.mu.Unlock()
		_ = conn.Close()
		return existing, nil
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return conn, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			c.teardown(conn, err)
			return
		}
		c.dispatch(&resp)
	}
}

func (c *Client) dispatch(resp *Response) {
	c.mu.Lock()
	id := resp.ID
	if id == "" && len(c.order) > 0 {
		// Agent did not echo the correlation id; resolve the oldest call.
		id = c.order[0]
	}
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		c.removeFromOrder(id)
	}
	c.mu.Unlock()

	if !ok {
		log.Printf("[capiws] dropping uncorrelated response success=%t", resp.Success)
		return
	}
	ch <- callResult{resp: resp}
}

// teardown fails every outstanding call. Nothing may hang on a dead socket.
func (c *Client) teardown(conn *websocket.Conn, cause error) {
	_ = conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	stranded := c.pending
	c.pending = make(map[string]chan callResult)
	c.order = nil
	c.mu.Unlock()

	err := bridgerr.Wrap(bridgerr.KindAgentUnavailable, bridgerr.SourceLocal,
		describeClose(cause), cause)
	for _, ch := range stranded {
		ch <- callResult{err: err}
	}
	if len(stranded) > 0 {
		log.Printf("[capiws] connection lost, failed %d in-flight calls: %v", len(stranded), cause)
	}
}

func (c *Client) removeFromOrder(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Call sends one RPC and waits for its response. Exactly one of response or
// error is returned. Cancelling ctx abandons the wait; the agent-side
// operation still completes and its late response is discarded.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	conn, err := c.ensureConn()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ch := make(chan callResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.order = append(c.order, id)
	c.mu.Unlock()

	c.writeMu.Lock()
	werr := conn.WriteJSON(frame{ID: id, Request: req})
	c.writeMu.Unlock()
	if werr != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.removeFromOrder(id)
		c.mu.Unlock()
		c.teardown(conn, werr)
		return nil, bridgerr.Wrap(bridgerr.KindAgentUnavailable, bridgerr.SourceLocal,
			"write to E-IMZO agent failed", werr)
	}

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.removeFromOrder(id)
		c.mu.Unlock()
		return nil, bridgerr.Wrap(bridgerr.KindAgentUnavailable, bridgerr.SourceLocal,
			"call abandoned: "+req.Name, ctx.Err())
	}
}

// CallFunction is the callback-shaped primitive. Exactly one of onSuccess or
// onFailure fires, never both, with no ordering guarantee across concurrent
// calls.
func (c *Client) CallFunction(req Request, onSuccess func(Response), onFailure func(error)) {
	go func() {
		resp, err := c.Call(context.Background(), req)
		if err != nil {
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(*resp)
		}
	}()
}

// APIKey performs the one-time handshake. Keys alternate domain identifiers
// and their signed keys; pairing is positional. Under the silent policy an
// unreachable agent is logged and ignored so startup never blocks on missing
// e-signature software.
func (c *Client) APIKey(ctx context.Context, keys []string, policy HandshakePolicy) error {
	if len(keys) == 0 || len(keys)%2 != 0 {
		return bridgerr.New(bridgerr.KindUnknown, bridgerr.SourceLocal,
			"apikey list must hold domain/key pairs")
	}
	resp, err := c.Call(ctx, Request{Name: "apikey", Arguments: keys})
	if err != nil {
		if policy == HandshakeSurface {
			return err
		}
		log.Printf("[capiws] apikey handshake skipped, agent unreachable: %v", err)
		return nil
	}
	if !resp.Success {
		if policy == HandshakeSurface {
			return bridgerr.New(bridgerr.KindAgentUnavailable, bridgerr.SourceLocal,
				"apikey rejected: "+resp.Reason)
		}
		log.Printf("[capiws] apikey rejected: %s", resp.Reason)
	}
	return nil
}

// Version asks the agent for its version.
func (c *Client) Version(ctx context.Context) (major, minor int, err error) {
	resp, err := c.Call(ctx, Request{Name: "version"})
	if err != nil {
		return 0, 0, err
	}
	if !resp.Success {
		return 0, 0, bridgerr.FromAgentReason(resp.Reason)
	}
	major, merr := strconv.Atoi(strings.TrimSpace(resp.Major))
	minor, nerr := strconv.Atoi(strings.TrimSpace(resp.Minor))
	if merr != nil || nerr != nil {
		return 0, 0, bridgerr.New(bridgerr.KindUnknown, bridgerr.SourceLocal,
			fmt.Sprintf("unparseable agent version %q.%q", resp.Major, resp.Minor))
	}
	return major, minor, nil
}

// CheckVersion fails when the installed agent is older than the required
// major.minor.
func (c *Client) CheckVersion(ctx context.Context, minMajor, minMinor int) error {
	major, minor, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if major*100+minor < minMajor*100+minMinor {
		return bridgerr.New(bridgerr.KindAgentUnavailable, bridgerr.SourceLocal,
			fmt.Sprintf("E-IMZO %d.%d is outdated, %d.%d or newer required",
				major, minor, minMajor, minMinor))
	}
	return nil
}

// Close shuts the channel down and fails whatever is still in flight.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.teardown(conn, fmt.Errorf("client closed"))
	}
}

// describeClose maps WebSocket close errors to readable diagnostics.
func describeClose(err error) string {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "connection to E-IMZO agent lost"
	}
	switch ce.Code {
	case websocket.CloseNormalClosure:
		return "agent closed the connection normally"
	case websocket.CloseGoingAway:
		return "agent is going away"
	case websocket.CloseProtocolError:
		return "agent terminated the connection due to a protocol error"
	case websocket.CloseAbnormalClosure:
		return "connection closed abnormally, no close frame received"
	case websocket.CloseMessageTooBig:
		return "agent rejected a message as too big"
	case websocket.CloseInternalServerErr:
		return "agent hit an internal error"
	case websocket.CloseTLSHandshake:
		return "TLS handshake with the agent failed"
	default:
		return fmt.Sprintf("connection closed with code %d", ce.Code)
	}
}
