package events

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSocketPath is where a pane monitor listens for hook events.
func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "tmx", "events.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("tmx-%d", os.Getuid()), "events.sock")
}
