// Package lock serialises execute calls against the same pane.
//
// Two executions typed into one pane interleave their keystrokes and markers.
// A lock file per (socket, target) pair, held for the whole call, keeps
// cooperating tmx processes from doing that. It is opt-in: panes driven by
// a single caller do not need it.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is how often a held lock is re-tried.
const retryDelay = 100 * time.Millisecond

var nameReplacer = strings.NewReplacer("/", "_", ":", "_", string(os.PathSeparator), "_")

// Dir hands out per-pane locks backed by files in Path.
type Dir struct {
	Path string
	// Socket namespaces lock files so panes on different tmux servers don't contend.
	Socket string
}

// DefaultPath returns the lock directory used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "tmx-locks")
}

// File returns the lock file path for target.
func (d Dir) File(target string) string {
	socket := d.Socket
	if socket == "" {
		socket = "default"
	}
	return filepath.Join(d.Path, nameReplacer.Replace(socket)+"__"+nameReplacer.Replace(target)+".lock")
}

// Lock blocks until the pane lock for target is held or ctx is done.
// The returned release func must be called to free the pane.
func (d Dir) Lock(ctx context.Context, target string) (func() error, error) {
	if err := os.MkdirAll(d.Path, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := d.File(target)
	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock pane %s: %w", target, err)
	}
	if !locked {
		return nil, fmt.Errorf("pane %s is busy (lock held: %s)", target, path)
	}
	return fl.Unlock, nil
}
