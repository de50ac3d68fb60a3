// Package output renders command results as human text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/tmx/internal/model"
)

// Printer writes results to W. With JSON set every result is one indented
// JSON document; otherwise a short human-readable summary.
type Printer struct {
	W    io.Writer
	JSON bool

	styles styles
}

// New returns a Printer. A nil renderer prints plain, unstyled text.
func New(w io.Writer, jsonOut bool, r *lipgloss.Renderer) *Printer {
	return &Printer{W: w, JSON: jsonOut, styles: newStyles(r, ThemeFor(r))}
}

type executeJSON struct {
	Output   string  `json:"output"`
	ExitCode int     `json:"exit_code"`
	Elapsed  float64 `json:"elapsed"`
}

type waitJSON struct {
	Matched     bool    `json:"matched"`
	Match       string  `json:"match,omitempty"`
	Elapsed     float64 `json:"elapsed"`
	LastCapture string  `json:"last_capture"`
}

type idleJSON struct {
	Idle        bool    `json:"idle"`
	Elapsed     float64 `json:"elapsed"`
	LastCapture string  `json:"last_capture"`
}

// Sessions prints a session list.
func (p *Printer) Sessions(sessions []model.Session) error {
	if p.JSON {
		if sessions == nil {
			sessions = []model.Session{}
		}
		return p.writeJSON(sessions)
	}
	lines := make([]string, len(sessions))
	for i, s := range sessions {
		lines[i] = p.session(s)
	}
	return p.list(lines)
}

// FormatSession renders one session as "name (attached, N windows, created T)".
func FormatSession(s model.Session) string {
	status := "detached"
	if s.Attached {
		status = "attached"
	}
	label := "windows"
	if s.Windows == 1 {
		label = "window"
	}
	return fmt.Sprintf("%s (%s, %d %s, created %s)", s.Name, status, s.Windows, label, s.Created.Format(time.RFC3339))
}

func (p *Printer) session(s model.Session) string {
	line := FormatSession(s)
	if !s.Attached {
		return p.styles.render(p.styles.muted, line)
	}
	return line
}

// Panes prints a pane list.
func (p *Printer) Panes(panes []model.Pane) error {
	if p.JSON {
		if panes == nil {
			panes = []model.Pane{}
		}
		return p.writeJSON(panes)
	}
	lines := make([]string, len(panes))
	for i, pane := range panes {
		lines[i] = fmt.Sprintf("%s\t%d\t%s", pane.Target, pane.PID, pane.Command)
	}
	return p.list(lines)
}

// SessionCreated confirms a new session.
func (p *Printer) SessionCreated(name string) error {
	if p.JSON {
		return p.writeJSON(map[string]string{"session": name})
	}
	return p.println("Created session: " + name)
}

// SessionKilled confirms a killed session.
func (p *Printer) SessionKilled(name string) error {
	if p.JSON {
		return p.writeJSON(map[string]any{"session": name, "killed": true})
	}
	return p.println("Killed session: " + name)
}

// Capture prints pane content as-is.
func (p *Printer) Capture(content string) error {
	if p.JSON {
		return p.writeJSON(map[string]string{"content": content})
	}
	return p.println(content)
}

// SentKeys confirms a send-keys call.
func (p *Printer) SentKeys(target string) error {
	if p.JSON {
		return p.writeJSON(map[string]any{"target": target, "sent": true})
	}
	return p.println("Sent keys to " + target)
}

// Execute prints a status header ("OK in 0.3s") followed by the command output.
func (p *Printer) Execute(r *model.ExecutionResult) error {
	if p.JSON {
		return p.writeJSON(executeJSON{Output: r.Output, ExitCode: r.ExitCode, Elapsed: r.Elapsed.Seconds()})
	}

	var status string
	switch {
	case r.ExitCode == 0:
		status = p.styles.render(p.styles.ok, "OK")
	case r.TimedOut():
		status = p.styles.render(p.styles.warn, "TIMEOUT")
	default:
		status = p.styles.render(p.styles.fail, fmt.Sprintf("FAILED (exit %d)", r.ExitCode))
	}
	header := fmt.Sprintf("%s in %s", status, seconds(r.Elapsed))
	if r.Output == "" {
		return p.println(header)
	}
	return p.println(header + "\n" + r.Output)
}

// Wait prints a wait-for-text outcome.
func (p *Printer) Wait(r *model.WaitResult) error {
	if p.JSON {
		return p.writeJSON(waitJSON{Matched: r.Matched, Match: r.Match, Elapsed: r.Elapsed.Seconds(), LastCapture: r.LastCapture})
	}
	if r.Matched {
		return p.println(fmt.Sprintf("%s after %s: %s", p.styles.render(p.styles.ok, "Matched"), seconds(r.Elapsed), r.Match))
	}
	return p.println(fmt.Sprintf("%s after %s. No match found.", p.styles.render(p.styles.warn, "Timed out"), seconds(r.Elapsed)))
}

// Idle prints a wait-idle outcome.
func (p *Printer) Idle(r *model.IdleResult) error {
	if p.JSON {
		return p.writeJSON(idleJSON{Idle: r.Idle, Elapsed: r.Elapsed.Seconds(), LastCapture: r.LastCapture})
	}
	if r.Idle {
		return p.println(fmt.Sprintf("%s after %s", p.styles.render(p.styles.ok, "Became idle"), seconds(r.Elapsed)))
	}
	return p.println(fmt.Sprintf("%s after %s. Pane still active.", p.styles.render(p.styles.warn, "Timed out"), seconds(r.Elapsed)))
}

func (p *Printer) list(lines []string) error {
	if len(lines) == 0 {
		return p.println("No items found.")
	}
	return p.println(strings.Join(lines, "\n"))
}

func (p *Printer) println(s string) error {
	_, err := fmt.Fprintln(p.W, s)
	return err
}

func (p *Printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.W)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// seconds formats d with one decimal, e.g. "1.2s".
func seconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
