package console

import (
	"sync"
	"time"

	"nconsole/wsconsole/pkg/config"
	"nconsole/wsconsole/pkg/endpoint"
	"nconsole/wsconsole/pkg/proto"
	"nconsole/wsconsole/pkg/transport"
)

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Init creates the process-wide client used by the package-level functions.
// Only the first call (or the first Default) builds it; later calls return
// the existing client and ignore opts.
func Init(opts ...Option) *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(opts...)
	}
	return defaultClient
}

// Default returns the process-wide client, creating it with defaults
// (endpoint ws://localhost:9090) if Init was never called.
func Default() *Client { return Init() }

func SetEndpoint(raw string) { Default().SetEndpoint(raw) }
func SetEnabled(on bool)     { Default().SetEnabled(on) }

func Log(args ...Arg)   { Default().Log(args...) }
func Info(args ...Arg)  { Default().Info(args...) }
func Warn(args ...Arg)  { Default().Warn(args...) }
func Error(args ...Arg) { Default().Error(args...) }

func Group(label string)          { Default().Group(label) }
func GroupCollapsed(label string) { Default().GroupCollapsed(label) }
func GroupEnd()                   { Default().GroupEnd() }

// Options maps a client config onto constructor options, including a
// WebSocket transport with the configured timeouts and DNS servers.
func Options(cfg config.ClientConfig) []Option {
	r := transport.NewResolver(cfg.DNSServers, 0, transport.DefaultResolverCacheTTL)
	opts := []Option{
		WithTransport(transport.NewWebSocket(time.Duration(cfg.DialTimeout), time.Duration(cfg.WriteTimeout), r)),
		WithResetOnSendError(cfg.ResetOnSendError),
	}
	if cfg.URI != "" {
		opts = append(opts, WithEndpoint(cfg.URI))
	}
	return opts
}

// Apply updates endpoint, enabled flag and send-error policy from a reloaded
// config. The connection is only dropped when the resolved endpoint changes.
func (c *Client) Apply(cfg config.ClientConfig) {
	var next string
	if cfg.URI == "" {
		next = endpoint.ResolveOptional(nil)
	} else {
		next = endpoint.Resolve(cfg.URI)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if next != c.endpoint {
		c.endpoint = next
		c.dropConnLocked()
	}
	c.enabled = cfg.IsEnabled()
	c.resetOnSendError = cfg.ResetOnSendError
}

// Arg is one loggable value.
type Arg = proto.Arg

func Text(s string) Arg    { return proto.Text(s) }
func Number(f float64) Arg { return proto.Number(f) }
func Bool(b bool) Arg      { return proto.Bool(b) }
func JSON(v any) Arg       { return proto.JSON(v) }

// Args converts plain Go values into Args.
func Args(vals ...any) []Arg { return proto.Args(vals...) }
