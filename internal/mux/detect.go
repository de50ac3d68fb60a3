package mux

import (
	"fmt"
	"os"
	"os/exec"
)

// Detect auto-detects the active terminal multiplexer.
// It checks environment variables first, then falls back to checking
// whether the multiplexer binary is installed. Unlike a pane monitor, tmx
// may be the one starting the first session, so a running server is not required.
func Detect(socket string) (Multiplexer, error) {
	if os.Getenv("TMUX") != "" {
		return NewTmux(socket), nil
	}
	if os.Getenv("ZELLIJ") != "" {
		return nil, fmt.Errorf("zellij support is not yet implemented")
	}

	if tmuxPath, err := exec.LookPath("tmux"); err == nil && tmuxPath != "" {
		return NewTmux(socket), nil
	}

	return nil, fmt.Errorf("no supported terminal multiplexer detected (set $TMUX or install tmux)")
}

// FromName creates a Multiplexer by name.
func FromName(name, socket string) (Multiplexer, error) {
	switch name {
	case "tmux":
		return NewTmux(socket), nil
	case "zellij":
		return nil, fmt.Errorf("zellij support is not yet implemented")
	default:
		return nil, fmt.Errorf("unknown multiplexer: %q (supported: tmux)", name)
	}
}
