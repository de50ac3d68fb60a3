// Package events publishes pane lifecycle events as unix datagrams.
//
// A pane monitor listening on the socket learns that a pane is busy with a
// tmx command, when it finished, and when a watched pane went idle, without
// scraping the pane itself.
package events

import (
	"fmt"
	"strings"
	"time"
)

// Assistant identifies tmx as the event source.
const Assistant = "tmx"

const (
	// StateIdle is sent by wait-idle; the others track one execute call.
	StateRunning   = "running"
	StateCompleted = "completed"
	StateError     = "error"
	StateIdle      = "idle"
)

// Event is the normalized hook payload.
type Event struct {
	Assistant string    `json:"assistant"`
	State     string    `json:"state"`
	Target    string    `json:"target"`
	TS        time.Time `json:"ts"`
	Message   string    `json:"message,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Assistant) == "" {
		return fmt.Errorf("assistant is required")
	}
	if !isValidState(e.State) {
		return fmt.Errorf("invalid state %q", e.State)
	}
	if strings.TrimSpace(e.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// IsTerminalState reports whether state ends a command's lifecycle.
func IsTerminalState(state string) bool {
	return state == StateCompleted || state == StateError
}

func isValidState(state string) bool {
	switch state {
	case StateRunning, StateCompleted, StateError, StateIdle:
		return true
	default:
		return false
	}
}
