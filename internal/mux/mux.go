// Package mux provides an abstraction over terminal multiplexers (tmux, zellij).
//
// This package is pure transport. It runs multiplexer commands and returns
// what they printed without interpreting pane content. Higher layers decide
// what a capture means.
package mux

import (
	"context"
	"strconv"
	"time"

	"github.com/timvw/tmx/internal/model"
)

// Multiplexer abstracts terminal multiplexer operations.
// Implementations exist for tmux and (future) zellij.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux", "zellij").
	Name() string

	// ListSessions returns all sessions. A missing server yields an empty list.
	ListSessions(ctx context.Context) ([]model.Session, error)

	// NewSession creates a detached session and returns its name.
	NewSession(ctx context.Context, opts NewSessionOptions) (string, error)

	// KillSession terminates the named session.
	KillSession(ctx context.Context, name string) error

	// ListPanes returns all panes, optionally filtered by a session name regex pattern.
	// An empty filter returns all panes.
	ListPanes(ctx context.Context, filter string) ([]model.Pane, error)

	// SendKeys types text into a pane.
	SendKeys(ctx context.Context, opts SendKeysOptions) error

	// CapturePane captures the visible content of a pane plus the requested scrollback.
	// The target format depends on the multiplexer (e.g., "session:window.pane" for tmux).
	CapturePane(ctx context.Context, target string, opts CaptureOptions) (string, error)
}

// AllHistory requests the complete scrollback history in CaptureOptions.Lines.
const AllHistory = -1

// DepthLabel names a capture depth for logs and metrics: "all" for
// AllHistory, the line count otherwise.
func DepthLabel(lines int) string {
	if lines == AllHistory {
		return "all"
	}
	return strconv.Itoa(lines)
}

// CaptureOptions controls how much of a pane is captured.
type CaptureOptions struct {
	// Lines is the number of scrollback lines above the visible region.
	// Zero captures the visible region only; AllHistory captures everything.
	Lines int
	// NoJoin disables joining of wrapped lines.
	NoJoin bool
}

// SendKeysOptions describes one keystroke injection.
type SendKeysOptions struct {
	Target string
	Text   string
	// Enter sends a separate Enter keystroke after Text.
	Enter bool
	// Delay is the pause between Text and Enter, giving the shell time to
	// consume the typed buffer before the line is committed.
	Delay time.Duration
	// Literal sends Text verbatim instead of as tmux key names.
	Literal bool
}

// NewSessionOptions describes a detached session to create.
type NewSessionOptions struct {
	Name       string
	Dir        string
	WindowName string
}
