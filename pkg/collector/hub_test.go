package collector

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nconsole/wsconsole/pkg/console"
	"nconsole/wsconsole/pkg/proto"
	"nconsole/wsconsole/pkg/transport"
)

type nopDiag struct{}

func (nopDiag) Printf(string, ...any) {}

var info = proto.ClientInfo{ID: "Go/test (linux)", Name: "Go Client", Platform: "go", OS: "linux", OSVersion: "6.1"}

func startHub(t *testing.T, maxEvents int) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(maxEvents, true)
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func waitEvents(t *testing.T, h *Hub, n int) []Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.Events("")) >= n }, 5*time.Second, 10*time.Millisecond)
	return h.Events("")
}

func TestHub_ReceivesConsoleClient(t *testing.T) {
	h, srv := startHub(t, 100)

	c := console.New(
		console.WithTransport(&transport.WebSocket{DialTimeout: 2 * time.Second, WriteTimeout: time.Second}),
		console.WithClientInfo(info),
		console.WithDiagnostics(nopDiag{}),
	)
	c.SetEndpoint(wsURL(srv, "/ws"))
	defer c.Close()

	c.Log(console.Text("Hello, World!"))
	c.Group("Test Group")
	c.Info(console.Text("Inside group"), console.Number(2))
	c.GroupCollapsed("Nested")
	c.Warn(console.JSON(map[string]any{"name": "name", "age": 18}))
	c.GroupEnd()
	c.GroupEnd()
	c.Error(console.Text("done"), console.Bool(false))
	require.NoError(t, c.LastError())

	events := waitEvents(t, h, 8)
	require.Len(t, events, 8)

	types := make([]proto.LogType, 0, len(events))
	depths := make([]int, 0, len(events))
	for _, e := range events {
		types = append(types, e.LogType)
		depths = append(depths, e.Depth)
		assert.Equal(t, info, e.ClientInfo)
		assert.Equal(t, "go", e.Language)
	}
	assert.Equal(t, []proto.LogType{"log", "group", "info", "groupCollapsed", "warn", "groupEnd", "groupEnd", "error"}, types)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 1, 0, 0}, depths)

	assert.Equal(t, "Hello, World!", events[0].Line())
	assert.Equal(t, "  INFO Inside group 2", events[2].Line())
	assert.Equal(t, "  ▼ Nested", events[3].Line())
	assert.JSONEq(t, `{"name":"name","age":18}`, events[4].Data[0].String())
	assert.Equal(t, "ERROR done false", events[7].Line())

	sessions := h.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 8, sessions[0].Frames)
	assert.Equal(t, 0, sessions[0].Depth)
	assert.True(t, sessions[0].Online)
	assert.Equal(t, info, sessions[0].ClientInfo)
}

func TestHub_ReconnectOpensNewSession(t *testing.T) {
	h, srv := startHub(t, 100)
	c := console.New(
		console.WithTransport(&transport.WebSocket{}),
		console.WithClientInfo(info),
		console.WithDiagnostics(nopDiag{}),
		console.WithEndpoint(wsURL(srv, "")),
	)
	defer c.Close()

	c.Log(console.Text("first"))
	waitEvents(t, h, 1)

	c.SetEndpoint(wsURL(srv, "/ws"))
	c.Log(console.Text("second"))
	events := waitEvents(t, h, 2)
	assert.NotEqual(t, events[0].Session, events[1].Session)

	require.Eventually(t, func() bool {
		online := 0
		for _, s := range h.Sessions() {
			if s.Online {
				online++
			}
		}
		return online == 1
	}, 5*time.Second, 10*time.Millisecond, "old connection is closed on endpoint change")
}

func TestHub_RejectsBadFrames(t *testing.T) {
	h, srv := startHub(t, 100)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"logType":"log","payload":{"data":{"data":[]}}}`)))
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte(`ignored`)))

	env, err := proto.NewEnvelope(proto.LogLog, time.Unix(10, 0), info, []proto.Arg{proto.Text("ok")})
	require.NoError(t, err)
	frame, err := proto.Encode(env)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))

	events := waitEvents(t, h, 1)
	assert.Equal(t, "ok", events[0].Line())
	assert.Equal(t, int64(10), events[0].Timestamp)

	sessions := h.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].Rejected)
	assert.Equal(t, 1, sessions[0].Frames)
}

func TestHub_Ingest_CapsHistory(t *testing.T) {
	h := NewHub(3, true)
	for i := 0; i < 5; i++ {
		env, err := proto.NewEnvelope(proto.LogLog, time.Unix(int64(i), 0), info, []proto.Arg{proto.Number(float64(i))})
		require.NoError(t, err)
		frame, err := proto.Encode(env)
		require.NoError(t, err)
		require.NoError(t, h.Ingest("s1", frame))
	}
	events := h.Events("s1")
	require.Len(t, events, 3)
	assert.Equal(t, "2", events[0].Line())
	assert.Equal(t, "4", events[2].Line())
	assert.Empty(t, h.Events("other"))
}

func TestHub_Ingest_GroupEndWithoutGroup(t *testing.T) {
	h := NewHub(10, true)
	env, err := proto.NewEnvelope(proto.LogGroupEnd, time.Now(), info, []proto.Arg{proto.Text("")})
	require.NoError(t, err)
	frame, err := proto.Encode(env)
	require.NoError(t, err)
	require.NoError(t, h.Ingest("s1", frame))
	assert.Equal(t, 0, h.Sessions()[0].Depth)
}

func TestHub_API(t *testing.T) {
	h, srv := startHub(t, 100)
	for _, id := range []string{"a", "b", "a"} {
		env, err := proto.NewEnvelope(proto.LogInfo, time.Unix(5, 0), info, []proto.Arg{proto.Text(id)})
		require.NoError(t, err)
		frame, err := proto.Encode(env)
		require.NoError(t, err)
		require.NoError(t, h.Ingest(id, frame))
	}

	get := func(path string) *http.Response {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	var all []Event
	resp := get("/api/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 3)

	var forA []Event
	require.NoError(t, json.NewDecoder(get("/api/sessions/a/events").Body).Decode(&forA))
	assert.Len(t, forA, 2)

	var last []Event
	require.NoError(t, json.NewDecoder(get("/api/events?session=a&limit=1").Body).Decode(&last))
	require.Len(t, last, 1)
	assert.Equal(t, "INFO a", last[0].Line())

	assert.Equal(t, http.StatusBadRequest, get("/api/events?limit=-1").StatusCode)

	var sessions []SessionState
	require.NoError(t, json.NewDecoder(get("/api/sessions").Body).Decode(&sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, 2, sessions[0].Frames)

	assert.Equal(t, http.StatusBadRequest, get("/ws").StatusCode)
}
