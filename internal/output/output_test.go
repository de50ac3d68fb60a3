package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/tmx/internal/model"
)

var created = time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

func plain(jsonOut bool) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, jsonOut, nil), &buf
}

func TestFormatSession(t *testing.T) {
	tests := []struct {
		name    string
		session model.Session
		want    string
	}{
		{
			name:    "attached, plural windows",
			session: model.Session{Name: "dev", Attached: true, Windows: 3, Created: created},
			want:    "dev (attached, 3 windows, created 2026-02-08T12:00:00Z)",
		},
		{
			name:    "detached, one window",
			session: model.Session{Name: "logs", Windows: 1, Created: created},
			want:    "logs (detached, 1 window, created 2026-02-08T12:00:00Z)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSession(tt.session); got != tt.want {
				t.Errorf("FormatSession(): got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessions_Empty(t *testing.T) {
	p, buf := plain(false)
	if err := p.Sessions(nil); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "No items found.\n" {
		t.Errorf("got %q", got)
	}
}

func TestSessions_EmptyJSON(t *testing.T) {
	p, buf := plain(true)
	if err := p.Sessions(nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("got %q, want []", got)
	}
}

func TestSessions_List(t *testing.T) {
	p, buf := plain(false)
	err := p.Sessions([]model.Session{
		{Name: "a", Attached: true, Windows: 1, Created: created},
		{Name: "b", Windows: 2, Created: created},
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a (attached") || !strings.HasPrefix(lines[1], "b (detached") {
		t.Errorf("got %q", buf.String())
	}
}

func TestPanes(t *testing.T) {
	p, buf := plain(false)
	if err := p.Panes([]model.Pane{{Target: "dev:0.0", PID: 42, Command: "zsh"}}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "dev:0.0\t42\tzsh\n" {
		t.Errorf("got %q", got)
	}
}

func TestSessionCreated(t *testing.T) {
	p, buf := plain(false)
	_ = p.SessionCreated("mytest")
	if got := buf.String(); got != "Created session: mytest\n" {
		t.Errorf("text: got %q", got)
	}

	p, buf = plain(true)
	_ = p.SessionCreated("mytest")
	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["session"] != "mytest" || len(got) != 1 {
		t.Errorf("json: got %v", got)
	}
}

func TestSessionKilled(t *testing.T) {
	p, buf := plain(false)
	_ = p.SessionKilled("old")
	if got := buf.String(); got != "Killed session: old\n" {
		t.Errorf("got %q", got)
	}
}

func TestCapture(t *testing.T) {
	p, buf := plain(false)
	_ = p.Capture("line1\nline2")
	if got := buf.String(); got != "line1\nline2\n" {
		t.Errorf("text: got %q", got)
	}

	p, buf = plain(true)
	_ = p.Capture("hello")
	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["content"] != "hello" {
		t.Errorf("json: got %v", got)
	}
}

func TestSentKeys(t *testing.T) {
	p, buf := plain(false)
	_ = p.SentKeys("dev:0.0")
	if got := buf.String(); got != "Sent keys to dev:0.0\n" {
		t.Errorf("text: got %q", got)
	}

	p, buf = plain(true)
	_ = p.SentKeys("dev:0.0")
	var got struct {
		Target string `json:"target"`
		Sent   bool   `json:"sent"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Target != "dev:0.0" || !got.Sent {
		t.Errorf("json: got %+v", got)
	}
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name   string
		result model.ExecutionResult
		want   string
	}{
		{"ok with output", model.ExecutionResult{Output: "hello", Elapsed: 300 * time.Millisecond}, "OK in 0.3s\nhello\n"},
		{"ok without output", model.ExecutionResult{Elapsed: time.Second}, "OK in 1.0s\n"},
		{"failed", model.ExecutionResult{Output: "ls: nope", ExitCode: 2, Elapsed: 200 * time.Millisecond}, "FAILED (exit 2) in 0.2s\nls: nope\n"},
		{"timeout", model.ExecutionResult{ExitCode: model.ExitCodeTimeout, Elapsed: 30 * time.Second}, "TIMEOUT in 30.0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, buf := plain(false)
			if err := p.Execute(&tt.result); err != nil {
				t.Fatal(err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecute_JSON(t *testing.T) {
	p, buf := plain(true)
	_ = p.Execute(&model.ExecutionResult{Output: "a\nb", ExitCode: 1, Elapsed: 1500 * time.Millisecond})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["output"] != "a\nb" || got["exit_code"] != float64(1) || got["elapsed"] != 1.5 {
		t.Errorf("json: got %v", got)
	}
}

func TestWait(t *testing.T) {
	p, buf := plain(false)
	_ = p.Wait(&model.WaitResult{Matched: true, Match: "$ ", Elapsed: 1200 * time.Millisecond, LastCapture: "some output\n$ "})
	if got := buf.String(); got != "Matched after 1.2s: $ \n" {
		t.Errorf("matched: got %q", got)
	}

	p, buf = plain(false)
	_ = p.Wait(&model.WaitResult{Elapsed: 15 * time.Second, LastCapture: "still running..."})
	if got := buf.String(); got != "Timed out after 15.0s. No match found.\n" {
		t.Errorf("timeout: got %q", got)
	}
}

func TestWait_JSON(t *testing.T) {
	p, buf := plain(true)
	_ = p.Wait(&model.WaitResult{Matched: true, Match: "$ ", Elapsed: 500 * time.Millisecond, LastCapture: "$ "})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["matched"] != true || got["match"] != "$ " || got["last_capture"] != "$ " {
		t.Errorf("json: got %v", got)
	}
}

func TestIdle(t *testing.T) {
	p, buf := plain(false)
	_ = p.Idle(&model.IdleResult{Idle: true, Elapsed: 2 * time.Second})
	if got := buf.String(); got != "Became idle after 2.0s\n" {
		t.Errorf("idle: got %q", got)
	}

	p, buf = plain(false)
	_ = p.Idle(&model.IdleResult{Elapsed: 30 * time.Second})
	if got := buf.String(); got != "Timed out after 30.0s. Pane still active.\n" {
		t.Errorf("timeout: got %q", got)
	}
}

func TestExecute_StyledKeepsText(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false, lipgloss.NewRenderer(&buf))
	_ = p.Execute(&model.ExecutionResult{ExitCode: 3, Elapsed: time.Second})
	if !strings.Contains(buf.String(), "FAILED (exit 3)") {
		t.Errorf("styled output lost status text: %q", buf.String())
	}
}
