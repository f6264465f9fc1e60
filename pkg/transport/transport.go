// Package transport carries encoded frames to the collector.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport opens connections to a collector endpoint.
type Transport interface {
	Connect(endpoint string) (Conn, error)
}

// Conn sends one text frame per call. Implementations must be safe for
// concurrent use.
type Conn interface {
	Send(text []byte) error
	Close() error
}

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// WebSocket dials ws:// and wss:// endpoints with gorilla/websocket.
type WebSocket struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	TLSConfig    *tls.Config
	Proxy        func(*http.Request) (*url.URL, error)
	// Resolver, when set, resolves endpoint host names through its own DNS
	// servers instead of the system resolver.
	Resolver *Resolver
	// Logf receives read-side failures of live connections. Defaults to log.Printf.
	Logf func(format string, v ...any)
}

func NewWebSocket(dialTimeout, writeTimeout time.Duration, r *Resolver) *WebSocket {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocket{
		DialTimeout:  dialTimeout,
		WriteTimeout: writeTimeout,
		Proxy:        http.ProxyFromEnvironment,
		Resolver:     r,
	}
}

func (w *WebSocket) Connect(endpoint string) (Conn, error) {
	dialTimeout := w.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	d := websocket.Dialer{
		Proxy:            w.Proxy,
		HandshakeTimeout: dialTimeout,
		TLSClientConfig:  w.TLSConfig,
	}
	if w.Resolver != nil {
		d.NetDialContext = w.dialResolved
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	ws, _, err := d.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", endpoint, err)
	}
	c := &wsConn{ws: ws, writeTimeout: w.WriteTimeout, logf: w.Logf}
	if c.writeTimeout <= 0 {
		c.writeTimeout = DefaultWriteTimeout
	}
	if c.logf == nil {
		c.logf = log.Printf
	}
	go c.readLoop()
	return c, nil
}

// dialResolved dials the first reachable address the resolver returns for addr's host.
func (w *WebSocket) dialResolved(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	var nd net.Dialer
	if net.ParseIP(host) != nil {
		return nd.DialContext(ctx, network, addr)
	}
	ips, err := w.Resolver.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, ip := range ips {
		conn, err := nd.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

type wsConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
	logf         func(format string, v ...any)
	closed       bool
}

var errClosed = errors.New("connection closed")

func (c *wsConn) Send(text []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, text)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

// readLoop drains control frames so pings and close frames from the collector
// are answered. The collector sends no data frames.
func (c *wsConn) readLoop() {
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logf("[TRANSPORT] read: %v", err)
			}
			return
		}
	}
}
