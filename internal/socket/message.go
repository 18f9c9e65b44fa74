package socket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Channel is the logical namespace for album rooms.
const Channel = "/memory"

// Event names on the push channel.
const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventNewMedia = "newMedia"
)

// Message is the frame envelope exchanged with the push server.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newMessage(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

// decodeFrames splits a frame into messages. Servers may batch queued
// messages into one frame separated by newlines.
func decodeFrames(frame []byte) ([]Message, []error) {
	var (
		msgs []Message
		errs []error
	)
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, errs
}

// Endpoint maps a base URL to the websocket URL of the album channel. http
// and https are rewritten to ws and wss.
func Endpoint(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported push url scheme %q", u.Scheme)
	}
	u.Path += Channel
	return u.String(), nil
}

// Backoff is the delay before reconnect attempt n (1-based): n × base,
// capped at max.
func Backoff(n int, base, max time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	d := time.Duration(n) * base
	if d > max {
		return max
	}
	return d
}
