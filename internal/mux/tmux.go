package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/timvw/tmx/internal/model"
	"github.com/timvw/tmx/internal/poll"
)

// enterAttempts is how many times the committing Enter keystroke is tried.
const enterAttempts = 3

// benignStderr lists tmux messages that mean "nothing to report" rather than failure.
var benignStderr = []string{
	"no server running",
	"no sessions",
	"error connecting to",
}

// Result is the raw outcome of one tmux invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// TransportError reports a tmux invocation that exited non-zero.
// It carries the raw result so callers can inspect stderr and the exit code.
type TransportError struct {
	Args   []string
	Result Result
}

func (e *TransportError) Error() string {
	msg := e.Result.Stderr
	if msg == "" {
		msg = fmt.Sprintf("tmux exited with code %d", e.Result.ExitCode)
	}
	if len(e.Args) == 0 {
		return msg
	}
	return fmt.Sprintf("tmux %s: %s", e.Args[0], msg)
}

// IsBenign reports whether stderr describes an absent server or an empty
// session list, which listing operations treat as an empty result.
func IsBenign(stderr string) bool {
	for _, s := range benignStderr {
		if strings.Contains(stderr, s) {
			return true
		}
	}
	return false
}

// Runner executes a command and reports its raw outcome.
// A non-zero exit is not an error; err is set only when the command could not run.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// Run executes name with args, capturing stdout and stderr separately.
// Trailing whitespace is trimmed from both streams.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimRightFunc(stdout.String(), unicode.IsSpace),
		Stderr: strings.TrimRightFunc(stderr.String(), unicode.IsSpace),
	}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// Tmux implements the Multiplexer interface for tmux.
// The zero value runs "tmux" on the default server socket.
type Tmux struct {
	// Binary is the tmux executable. Empty means "tmux".
	Binary string
	// Socket selects an alternate server socket name (tmux -L).
	Socket string
	// Runner executes tmux. Nil means ExecRunner.
	Runner Runner
	// Clock paces send-keys. Nil means the wall clock.
	Clock poll.Clock
}

// NewTmux creates a new tmux multiplexer on the given socket name.
// An empty socket uses the default server.
func NewTmux(socket string) *Tmux {
	return &Tmux{Socket: socket}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// Run executes a tmux command and returns its raw result.
// A non-zero exit code is reported in the result, not as an error.
func (t *Tmux) Run(ctx context.Context, args ...string) (Result, error) {
	binary := t.Binary
	if binary == "" {
		binary = "tmux"
	}
	runner := t.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	full := make([]string, 0, len(args)+2)
	if t.Socket != "" {
		full = append(full, "-L", t.Socket)
	}
	full = append(full, args...)

	res, err := runner.Run(ctx, binary, full...)
	if err != nil {
		return res, fmt.Errorf("run %s: %w", binary, err)
	}
	return res, nil
}

// Output executes a tmux command and returns its stdout.
// A non-zero exit yields a *TransportError, except for benign conditions
// (no server, no sessions, connection refused) which yield an empty result.
func (t *Tmux) Output(ctx context.Context, args ...string) (string, error) {
	res, err := t.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		if IsBenign(res.Stderr) {
			return "", nil
		}
		return "", &TransportError{Args: args, Result: res}
	}
	return res.Stdout, nil
}

// run executes a tmux command that addresses a specific session or pane.
// Every non-zero exit is a *TransportError: a target on a missing server is unreachable.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	res, err := t.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &TransportError{Args: args, Result: res}
	}
	return res.Stdout, nil
}

// ListSessions returns all tmux sessions. No server means no sessions.
func (t *Tmux) ListSessions(ctx context.Context) ([]model.Session, error) {
	const sep = "|"
	format := strings.Join([]string{
		"#{session_name}",
		"#{session_attached}",
		"#{session_windows}",
		"#{session_created}",
	}, sep)
	out, err := t.Output(ctx, "list-sessions", "-F", format)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var sessions []model.Session
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, sep)
		if len(parts) != 4 {
			continue
		}
		attached, _ := strconv.Atoi(parts[1])
		windows, _ := strconv.Atoi(parts[2])
		epoch, _ := strconv.ParseInt(parts[3], 10, 64)
		sessions = append(sessions, model.Session{
			Name:     parts[0],
			Attached: attached > 0,
			Windows:  windows,
			Created:  time.Unix(epoch, 0).UTC(),
		})
	}
	return sessions, nil
}

// NewSession creates a new detached tmux session and returns the name tmux assigned.
func (t *Tmux) NewSession(ctx context.Context, opts NewSessionOptions) (string, error) {
	args := []string{"new-session", "-d", "-s", opts.Name, "-P", "-F", "#{session_name}"}
	if opts.WindowName != "" {
		args = append(args, "-n", opts.WindowName)
	}
	if opts.Dir != "" {
		args = append(args, "-c", opts.Dir)
	}
	out, err := t.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("tmux new-session -s %s: %w", opts.Name, err)
	}
	if out == "" {
		return opts.Name, nil
	}
	return out, nil
}

// KillSession terminates a tmux session.
func (t *Tmux) KillSession(ctx context.Context, name string) error {
	if _, err := t.run(ctx, "kill-session", "-t", name); err != nil {
		return fmt.Errorf("tmux kill-session -t %s: %w", name, err)
	}
	return nil
}

// ListPanes returns all tmux panes, optionally filtered by session name pattern.
func (t *Tmux) ListPanes(ctx context.Context, filter string) ([]model.Pane, error) {
	var re *regexp.Regexp
	if filter != "" {
		var err error
		re, err = regexp.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	// Format: session_name:window_index.pane_index\tpane_pid\tcurrent_command
	format := "#{session_name}:#{window_index}.#{pane_index}\t#{pane_pid}\t#{pane_current_command}"
	out, err := t.Output(ctx, "list-panes", "-a", "-F", format)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}

	var panes []model.Pane
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		pane, err := ParseTarget(parts[0])
		if err != nil {
			continue
		}
		if re != nil && !re.MatchString(pane.Session) {
			continue
		}
		pane.PID, _ = strconv.Atoi(parts[1])
		pane.Command = parts[2]
		panes = append(panes, pane)
	}
	return panes, nil
}

// SendKeys types text into a pane, then optionally commits it with Enter.
//
// Text and Enter are sent as separate invocations with a pause between them:
// when both arrive together the shell may not have consumed the typed buffer
// yet and the Enter is lost. Enter is retried a few times on failure.
func (t *Tmux) SendKeys(ctx context.Context, opts SendKeysOptions) error {
	args := []string{"send-keys", "-t", opts.Target}
	if opts.Literal {
		args = append(args, "-l")
	}
	args = append(args, "--", opts.Text)
	if _, err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("send keys to %s: %w", opts.Target, err)
	}
	if !opts.Enter {
		return nil
	}

	clock := poll.OrSystem(t.Clock)
	if err := clock.Sleep(ctx, opts.Delay); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < enterAttempts; attempt++ {
		if attempt > 0 {
			if err := clock.Sleep(ctx, 200*time.Millisecond); err != nil {
				return err
			}
		}
		if _, err := t.run(ctx, "send-keys", "-t", opts.Target, "Enter"); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to send Enter after %d attempts: %w", enterAttempts, lastErr)
}

// CapturePane captures a pane's visible content plus the requested scrollback.
// Uses -p (stdout) and, unless disabled, -J (joined, unwraps lines).
func (t *Tmux) CapturePane(ctx context.Context, target string, opts CaptureOptions) (string, error) {
	args := []string{"capture-pane", "-p", "-t", target}
	if !opts.NoJoin {
		args = append(args, "-J")
	}
	switch {
	case opts.Lines == AllHistory:
		args = append(args, "-S", "-")
	case opts.Lines > 0:
		args = append(args, "-S", fmt.Sprintf("-%d", opts.Lines))
	}
	out, err := t.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("tmux capture-pane -t %s: %w", target, err)
	}
	return out, nil
}

// ParseTarget parses a tmux target string "session:window.pane" into a Pane.
func ParseTarget(target string) (model.Pane, error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing ':'", target)
	}

	session := target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err := strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid window index in %q: %w", target, err)
	}

	pane, err := strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}

	return model.Pane{
		Target:  target,
		Session: session,
		Window:  window,
		Pane:    pane,
	}, nil
}
