package events

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// maxPayloadBytes matches what the listening collector accepts per datagram.
const maxPayloadBytes = 8 * 1024

// Emitter sends events to a unixgram socket.
// The zero value is disabled; Emit on it does nothing.
type Emitter struct {
	Path string
	// Now stamps events. Nil means time.Now.
	Now func() time.Time
}

// NewEmitter returns an emitter for the socket at path. An empty path disables it.
func NewEmitter(path string) *Emitter {
	return &Emitter{Path: path}
}

// Emit sends one event for target. Messages are truncated so the datagram
// fits the collector's payload limit.
func (e *Emitter) Emit(state, target, message string) error {
	if e == nil || e.Path == "" {
		return nil
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	ev := Event{
		Assistant: Assistant,
		State:     state,
		Target:    target,
		TS:        now().UTC(),
		Message:   message,
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if over := len(payload) - maxPayloadBytes; over > 0 {
		ev.Message = truncate(ev.Message, len(ev.Message)-over)
		if payload, err = json.Marshal(ev); err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: e.Path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("dial %s: %w", e.Path, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
