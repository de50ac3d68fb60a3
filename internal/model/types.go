package model

import (
	"time"
)

// ExitCodeTimeout is the ExecutionResult exit code reported when the deadline
// passed before the command's completion sentinel was observed.
const ExitCodeTimeout = -1

// Session represents a tmux session as reported by list-sessions.
type Session struct {
	// Name is the session name.
	Name string `json:"name"`
	// Attached reports whether at least one client is attached.
	Attached bool `json:"attached"`
	// Windows is the number of windows in the session.
	Windows int `json:"windows"`
	// Created is the session creation time (UTC).
	Created time.Time `json:"created"`
}

// Pane represents a terminal multiplexer pane.
type Pane struct {
	// Target is the fully qualified pane identifier (e.g., "session:0.0").
	Target string `json:"target"`
	// Session is the session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// PID is the pane's shell process ID.
	PID int `json:"pid"`
	// Command is the current command running in the pane (e.g., "bash").
	Command string `json:"command"`
}

// ExecutionResult is the outcome of running one command in a pane.
type ExecutionResult struct {
	// Output is the command's combined stdout and stderr.
	Output string
	// ExitCode is the command's exit status, or ExitCodeTimeout.
	ExitCode int
	// Elapsed runs from the start of the call, pane lock wait included, to
	// observing the result.
	Elapsed time.Duration
}

// TimedOut reports whether the command did not complete before the deadline.
func (r *ExecutionResult) TimedOut() bool {
	return r.ExitCode == ExitCodeTimeout
}

// WaitResult is the outcome of waiting for a pattern to appear in a pane.
type WaitResult struct {
	Matched bool
	// Match is the first line that matched. Empty when Matched is false.
	Match   string
	Elapsed time.Duration
	// LastCapture is the most recent pane capture, kept for diagnostics.
	LastCapture string
}

// IdleResult is the outcome of waiting for a pane to stop changing.
type IdleResult struct {
	Idle        bool
	Elapsed     time.Duration
	LastCapture string
}
