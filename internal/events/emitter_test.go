package events

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// listen opens a unixgram socket in a short temp dir (sun_path is limited to ~108 bytes).
func listen(t *testing.T) (*net.UnixConn, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "tmxev")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "e.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen unixgram: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, path
}

func readEvent(t *testing.T, conn *net.UnixConn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read datagram: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(buf[:n], &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", buf[:n], err)
	}
	return ev
}

func TestEmitter_Emit(t *testing.T) {
	conn, path := listen(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := &Emitter{Path: path, Now: func() time.Time { return ts }}

	if err := e.Emit(StateCompleted, "dev:0.0", "exit 0"); err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Assistant != "tmx" || ev.State != StateCompleted || ev.Target != "dev:0.0" || ev.Message != "exit 0" {
		t.Errorf("event: got %+v", ev)
	}
	if !ev.TS.Equal(ts) {
		t.Errorf("ts: got %v, want %v", ev.TS, ts)
	}
}

func TestEmitter_TruncatesLargeMessage(t *testing.T) {
	conn, path := listen(t)
	e := NewEmitter(path)

	if err := e.Emit(StateError, "dev:0.0", strings.Repeat("é", 10000)); err != nil {
		t.Fatalf("Emit() error: %v", err)
	}

	ev := readEvent(t, conn)
	if len(ev.Message) == 0 || len(ev.Message) >= 20000 {
		t.Errorf("message length: got %d, want truncated", len(ev.Message))
	}
	if strings.ContainsRune(ev.Message, '�') {
		t.Error("truncation split a UTF-8 sequence")
	}
}

func TestEmitter_Disabled(t *testing.T) {
	var nilEmitter *Emitter
	if err := nilEmitter.Emit(StateCompleted, "dev", ""); err != nil {
		t.Errorf("nil emitter: got %v, want nil", err)
	}
	if err := NewEmitter("").Emit(StateCompleted, "dev", ""); err != nil {
		t.Errorf("empty path: got %v, want nil", err)
	}
}

func TestEmitter_NoListener(t *testing.T) {
	e := NewEmitter(filepath.Join(t.TempDir(), "missing.sock"))
	if err := e.Emit(StateCompleted, "dev", ""); err == nil {
		t.Fatal("expected error when nothing listens on the socket")
	}
}

func TestEmitter_InvalidState(t *testing.T) {
	_, path := listen(t)
	if err := NewEmitter(path).Emit("bogus", "dev", ""); err == nil {
		t.Fatal("expected validation error for unknown state")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d): got %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}
