// Package console sends console-style log calls (log, info, warn, error and
// nested groups) to a remote collector over a WebSocket.
//
// Logging never fails from the caller's point of view: connection and send
// errors go to a local Diagnostics sink and the message is dropped.
package console

import (
	"fmt"
	"log"
	"sync"
	"time"

	"nconsole/wsconsole/pkg/endpoint"
	"nconsole/wsconsole/pkg/probe"
	"nconsole/wsconsole/pkg/proto"
	"nconsole/wsconsole/pkg/transport"
)

// Diagnostics receives transport failures. *log.Logger satisfies it.
type Diagnostics interface {
	Printf(format string, v ...any)
}

// Client owns the endpoint, at most one live connection and the group stack.
// All methods are safe for concurrent use; each call runs as one critical
// section, so a group push and its frame are never interleaved with another
// caller's frame.
type Client struct {
	mu       sync.Mutex
	endpoint string
	enabled  bool
	conn     transport.Conn
	groups   []string
	info     proto.ClientInfo
	lastErr  error

	tr               transport.Transport
	diag             Diagnostics
	now              func() time.Time
	resetOnSendError bool
}

type Option func(*Client)

// WithEndpoint sets the initial endpoint, resolved like SetEndpoint.
func WithEndpoint(raw string) Option {
	return func(c *Client) { c.endpoint = endpoint.Resolve(raw) }
}

func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.tr = t }
}

// WithClientInfo replaces the probed ClientInfo.
func WithClientInfo(info proto.ClientInfo) Option {
	return func(c *Client) { c.info = info }
}

// WithDiagnostics sets the failure sink. A *transport.WebSocket without its
// own Logf reports read failures here too.
func WithDiagnostics(d Diagnostics) Option {
	return func(c *Client) { c.diag = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithResetOnSendError drops the connection after a failed send so the next
// call dials again. Off by default: a failed connection is kept until
// SetEndpoint.
func WithResetOnSendError(on bool) Option {
	return func(c *Client) { c.resetOnSendError = on }
}

func New(opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint.Default,
		enabled:  true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.diag == nil {
		c.diag = log.Default()
	}
	if c.tr == nil {
		c.tr = transport.NewWebSocket(0, 0, nil)
	}
	if ws, ok := c.tr.(*transport.WebSocket); ok && ws.Logf == nil {
		ws.Logf = c.diag.Printf
	}
	if c.info == (proto.ClientInfo{}) {
		c.info = probe.CurrentClientInfo()
	}
	return c
}

// SetEndpoint resolves raw and discards the live connection. The next logging
// call connects to the new endpoint.
func (c *Client) SetEndpoint(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = endpoint.Resolve(raw)
	c.dropConnLocked()
}

// SetEnabled turns sending on or off. While off, logging calls never connect,
// send or report diagnostics.
func (c *Client) SetEnabled(on bool) {
	c.mu.Lock()
	c.enabled = on
	c.mu.Unlock()
}

func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Depth is the number of open groups.
func (c *Client) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

// Connected reports whether a connection handle is held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// LastError is the most recent connect or send failure, cleared by the next
// successful send.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) Log(args ...proto.Arg)   { c.send(proto.LogLog, args) }
func (c *Client) Info(args ...proto.Arg)  { c.send(proto.LogInfo, args) }
func (c *Client) Warn(args ...proto.Arg)  { c.send(proto.LogWarn, args) }
func (c *Client) Error(args ...proto.Arg) { c.send(proto.LogError, args) }

// Group opens a nested group on the remote console.
func (c *Client) Group(label string) { c.group(proto.LogGroup, label) }

// GroupCollapsed opens a nested group that starts collapsed.
func (c *Client) GroupCollapsed(label string) { c.group(proto.LogGroupCollapsed, label) }

// GroupEnd closes the innermost group. Without an open group nothing is sent.
func (c *Client) GroupEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.groups) == 0 {
		return
	}
	c.groups = c.groups[:len(c.groups)-1]
	c.dispatchLocked(proto.LogGroupEnd, []proto.Arg{proto.Text("")})
}

// Close closes the live connection, if any. Later logging calls reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) group(t proto.LogType, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = append(c.groups, label)
	c.dispatchLocked(t, []proto.Arg{proto.Text(label)})
}

func (c *Client) send(t proto.LogType, args []proto.Arg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchLocked(t, args)
}

// dispatchLocked connects if needed and sends one frame. Dial and write are
// bounded by the transport's timeouts, so holding the lock cannot block
// other callers indefinitely.
func (c *Client) dispatchLocked(t proto.LogType, args []proto.Arg) {
	if !c.enabled {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.reportLocked(&SendError{LogType: t, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if c.conn == nil {
		conn, err := c.tr.Connect(c.endpoint)
		if err != nil {
			c.reportLocked(&ConnectError{Endpoint: c.endpoint, Err: err})
			return
		}
		c.conn = conn
	}

	env, err := proto.NewEnvelope(t, c.now(), c.info, args)
	if err != nil {
		c.reportLocked(&SendError{LogType: t, Err: err})
		return
	}
	frame, err := proto.Encode(env)
	if err != nil {
		c.reportLocked(&SendError{LogType: t, Err: err})
		return
	}
	if err := c.conn.Send(frame); err != nil {
		c.reportLocked(&SendError{LogType: t, Err: err})
		if c.resetOnSendError {
			c.dropConnLocked()
		}
		return
	}
	c.lastErr = nil
}

func (c *Client) reportLocked(err error) {
	c.lastErr = err
	c.diag.Printf("[NCONSOLE] %v", err)
}

func (c *Client) dropConnLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}
