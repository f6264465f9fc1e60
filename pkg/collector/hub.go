// Package collector is a reference collector: it accepts console frames over
// WebSocket, decodes them and keeps the most recent events in memory.
package collector

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nconsole/wsconsole/pkg/proto"
)

// Event is one decoded frame.
type Event struct {
	Session      string           `json:"session"`
	ReceivedUnix int64            `json:"received_unix"`
	Timestamp    int64            `json:"timestamp"`
	LogType      proto.LogType    `json:"logType"`
	Language     string           `json:"language"`
	Depth        int              `json:"depth"`
	ClientInfo   proto.ClientInfo `json:"clientInfo"`
	Data         []proto.Arg      `json:"data"`
}

// Line renders the event like a console would: indented by group depth.
func (e Event) Line() string {
	parts := make([]string, 0, len(e.Data))
	for _, a := range e.Data {
		parts = append(parts, a.String())
	}
	indent := strings.Repeat("  ", e.Depth)
	switch e.LogType {
	case proto.LogGroup, proto.LogGroupCollapsed:
		return indent + "▼ " + strings.Join(parts, " ")
	case proto.LogLog:
		return indent + strings.Join(parts, " ")
	default:
		return indent + strings.ToUpper(string(e.LogType)) + " " + strings.Join(parts, " ")
	}
}

// SessionState is the API view of one client connection.
type SessionState struct {
	ID           string           `json:"id"`
	Remote       string           `json:"remote"`
	Online       bool             `json:"online"`
	Depth        int              `json:"depth"`
	Frames       int              `json:"frames"`
	Rejected     int              `json:"rejected"`
	LastSeenUnix int64            `json:"last_seen_unix"`
	ClientInfo   proto.ClientInfo `json:"clientInfo"`
}

type session struct {
	state SessionState
	ws    *websocket.Conn
}

type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	events    []Event
	maxEvents int
	quiet     bool
	now       func() time.Time
}

func NewHub(maxEvents int, quiet bool) *Hub {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Hub{sessions: map[string]*session{}, maxEvents: maxEvents, quiet: quiet, now: time.Now}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Handler serves the WebSocket endpoint at / and /ws plus a small JSON API.
func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.handleWS)
	r.Get("/ws", h.handleWS)
	r.Get("/api/events", h.handleEvents)
	r.Get("/api/sessions", h.handleSessions)
	r.Get("/api/sessions/{id}/events", h.handleEvents)
	return r
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[COLLECTOR] upgrade failed: %v", err)
		return
	}
	s := &session{ws: ws, state: SessionState{
		ID:           uuid.NewString(),
		Remote:       r.RemoteAddr,
		Online:       true,
		LastSeenUnix: h.now().Unix(),
	}}
	h.mu.Lock()
	h.sessions[s.state.ID] = s
	h.mu.Unlock()
	log.Printf("[COLLECTOR] session %s connected from %s", s.state.ID, r.RemoteAddr)

	defer func() {
		h.mu.Lock()
		s.ws = nil
		s.state.Online = false
		s.state.LastSeenUnix = h.now().Unix()
		h.mu.Unlock()
		_ = ws.Close()
		log.Printf("[COLLECTOR] session %s disconnected", s.state.ID)
	}()

	for {
		kind, frame, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := h.Ingest(s.state.ID, frame); err != nil {
			log.Printf("[COLLECTOR] bad frame from %s: %v", s.state.ID, err)
		}
	}
}

// Ingest decodes one frame for a session and records it.
func (h *Hub) Ingest(sessionID string, frame []byte) error {
	env, body, err := proto.Decode(frame)

	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok {
		s = &session{state: SessionState{ID: sessionID}}
		h.sessions[sessionID] = s
	}
	s.state.LastSeenUnix = h.now().Unix()
	if err != nil {
		s.state.Rejected++
		h.mu.Unlock()
		return err
	}
	s.state.Frames++
	s.state.ClientInfo = body.ClientInfo

	// groupEnd outdents itself; group lines print before indenting
	if env.LogType == proto.LogGroupEnd && s.state.Depth > 0 {
		s.state.Depth--
	}
	evt := Event{
		Session:      sessionID,
		ReceivedUnix: s.state.LastSeenUnix,
		Timestamp:    env.Timestamp,
		LogType:      env.LogType,
		Language:     env.Language,
		Depth:        s.state.Depth,
		ClientInfo:   body.ClientInfo,
		Data:         body.Data,
	}
	if env.LogType == proto.LogGroup || env.LogType == proto.LogGroupCollapsed {
		s.state.Depth++
	}
	// cap at maxEvents
	if len(h.events) >= h.maxEvents {
		h.events = append(h.events[1:], evt)
	} else {
		h.events = append(h.events, evt)
	}
	h.mu.Unlock()

	if !h.quiet && env.LogType != proto.LogGroupEnd {
		log.Printf("[%s] %s", shortID(sessionID), evt.Line())
	}
	return nil
}

// Events returns recorded events, oldest first, optionally for one session.
func (h *Hub) Events(sessionID string) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, 0, len(h.events))
	for _, e := range h.events {
		if sessionID == "" || e.Session == sessionID {
			out = append(out, e)
		}
	}
	return out
}

func (h *Hub) Sessions() []SessionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := make([]SessionState, 0, len(h.sessions))
	for _, s := range h.sessions {
		list = append(list, s.state)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Close disconnects every live session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		if s.ws != nil {
			_ = s.ws.Close()
		}
	}
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("session")
	}
	events := h.Events(id)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if n < len(events) {
			events = events[len(events)-n:]
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (h *Hub) handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Sessions())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
