package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Wire protocol (JSON text frames over WebSocket)

type LogType string

const (
	LogLog            LogType = "log"
	LogInfo           LogType = "info"
	LogWarn           LogType = "warn"
	LogError          LogType = "error"
	LogGroup          LogType = "group"
	LogGroupCollapsed LogType = "groupCollapsed"
	LogGroupEnd       LogType = "groupEnd"
)

// Valid reports whether t is one of the known console methods.
func (t LogType) Valid() bool {
	switch t {
	case LogLog, LogInfo, LogWarn, LogError, LogGroup, LogGroupCollapsed, LogGroupEnd:
		return true
	}
	return false
}

// Language tags every envelope sent by this client.
const Language = "go"

// ClientInfo describes the sending process. It is probed once and attached
// unchanged to every envelope.
type ClientInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	Version   string `json:"version"`
	OS        string `json:"os"`
	OSVersion string `json:"os_version"`
	Language  string `json:"language"`
	TimeZone  string `json:"time_zone"`
	UserAgent string `json:"user_agent"`
}

// Envelope is the single JSON object sent per logging call.
// Keys are declared in the sorted order the collector's reference encoder emits.
type Envelope struct {
	Language  string  `json:"language"`
	LogType   LogType `json:"logType"`
	Payload   Payload `json:"payload"`
	Secure    bool    `json:"secure"`
	Timestamp int64   `json:"timestamp"`
}

// Payload.Data holds a Body encoded as JSON text, not a nested object.
type Payload struct {
	Data string `json:"data"`
}

type Body struct {
	ClientInfo ClientInfo `json:"clientInfo"`
	Data       []Arg      `json:"data"`
}

// NewEnvelope builds the envelope for one logging call, encoding the body
// into payload.data.
func NewEnvelope(t LogType, at time.Time, info ClientInfo, args []Arg) (Envelope, error) {
	if args == nil {
		args = []Arg{}
	}
	body, err := marshal(Body{ClientInfo: info, Data: args})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	return Envelope{
		Language:  Language,
		LogType:   t,
		Payload:   Payload{Data: string(body)},
		Secure:    false,
		Timestamp: at.Unix(),
	}, nil
}

// Encode renders the frame text for e.
func Encode(e Envelope) ([]byte, error) {
	return marshal(e)
}

// Decode parses a frame and its embedded body.
func Decode(frame []byte) (Envelope, Body, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, Body{}, fmt.Errorf("parse envelope: %w", err)
	}
	if !env.LogType.Valid() {
		return env, Body{}, fmt.Errorf("unknown logType %q", env.LogType)
	}
	if env.Payload.Data == "" {
		return env, Body{}, errors.New("empty payload.data")
	}
	var body Body
	if err := json.Unmarshal([]byte(env.Payload.Data), &body); err != nil {
		return env, Body{}, fmt.Errorf("parse payload.data: %w", err)
	}
	return env, body, nil
}

// marshal is json.Marshal without HTML escaping and without the trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
