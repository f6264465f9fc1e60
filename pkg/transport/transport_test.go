package transport

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	kind int
	data string
}

// newEchoCollector accepts websocket connections and forwards every frame it
// reads to the returned channel.
func newEchoCollector(t *testing.T) (*httptest.Server, <-chan frame) {
	t.Helper()
	frames := make(chan frame, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			kind, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			frames <- frame{kind: kind, data: string(data)}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, frames
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func receive(t *testing.T, frames <-chan frame) frame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func TestWebSocket_SendTextFrames(t *testing.T) {
	srv, frames := newEchoCollector(t)

	tr := &WebSocket{DialTimeout: 2 * time.Second, WriteTimeout: time.Second}
	conn, err := tr.Connect(wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send([]byte(`{"logType":"log"}`)))
	require.NoError(t, conn.Send([]byte(`{"logType":"warn"}`)))

	first := receive(t, frames)
	assert.Equal(t, websocket.TextMessage, first.kind)
	assert.Equal(t, `{"logType":"log"}`, first.data)
	assert.Equal(t, `{"logType":"warn"}`, receive(t, frames).data)
}

func TestWebSocket_SendAfterClose(t *testing.T) {
	srv, _ := newEchoCollector(t)

	conn, err := (&WebSocket{}).Connect(wsURL(srv))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Error(t, conn.Send([]byte("late")))
}

func TestWebSocket_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = (&WebSocket{DialTimeout: time.Second}).Connect("ws://" + addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial ws://"+addr)
}

func TestWebSocket_ConnectMalformedEndpoint(t *testing.T) {
	_, err := (&WebSocket{DialTimeout: time.Second}).Connect("ws://")
	assert.Error(t, err)
}

func TestWebSocket_UnexpectedCloseGoesToLogf(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = ws.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	lines := make(chan string, 4)
	tr := &WebSocket{Logf: func(format string, v ...any) { lines <- fmt.Sprintf(format, v...) }}
	conn, err := tr.Connect(wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	select {
	case line := <-lines:
		assert.Contains(t, line, "[TRANSPORT] read:")
		assert.Contains(t, line, "boom")
	case <-time.After(5 * time.Second):
		t.Fatal("unexpected close was not reported")
	}
}

func TestNewWebSocket_Defaults(t *testing.T) {
	tr := NewWebSocket(0, 0, nil)
	assert.Equal(t, DefaultDialTimeout, tr.DialTimeout)
	assert.Equal(t, DefaultWriteTimeout, tr.WriteTimeout)
	assert.NotNil(t, tr.Proxy)
	assert.Nil(t, tr.Resolver)
}

func TestWebSocket_ConnectThroughResolver(t *testing.T) {
	srv, frames := newEchoCollector(t)
	_, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	dnsAddr := startDNS(t, map[string]string{"collector.test.": "127.0.0.1"}, nil)
	tr := &WebSocket{
		DialTimeout:  2 * time.Second,
		WriteTimeout: time.Second,
		Resolver:     NewResolver([]string{dnsAddr}, time.Second, time.Minute),
	}
	conn, err := tr.Connect("ws://collector.test:" + port)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send([]byte("via dns")))
	assert.Equal(t, "via dns", receive(t, frames).data)
}

// startDNS serves A records and CNAMEs from an in-process DNS server and
// returns its address.
func startDNS(t *testing.T, a map[string]string, cname map[string]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := mdns.HandlerFunc(func(w mdns.ResponseWriter, req *mdns.Msg) {
		m := new(mdns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		if target, ok := cname[q.Name]; ok {
			rr, _ := mdns.NewRR(q.Name + " 60 IN CNAME " + target)
			m.Answer = append(m.Answer, rr)
		} else if ip, ok := a[q.Name]; ok && q.Qtype == mdns.TypeA {
			rr, _ := mdns.NewRR(q.Name + " 60 IN A " + ip)
			m.Answer = append(m.Answer, rr)
		} else if !ok {
			m.Rcode = mdns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &mdns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}
