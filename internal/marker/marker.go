// Package marker turns an opaque shell command into a boundary-delimited,
// exit-code-carrying block of pane text, and recovers output and exit code
// from a capture of that pane.
package marker

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	startPrefix = "__TMUX_EXEC_START_"
	endPrefix   = "__TMUX_EXEC_END_"
	suffix      = "__"
)

// lastStamp is the most recently issued stamp. Stamps strictly increase so
// two calls in the same nanosecond still get distinct markers.
var lastStamp atomic.Int64

// Markers is a start/end sentinel pair for a single execution.
type Markers struct {
	Start string
	End   string
}

// Parsed is the output and exit code recovered from a capture.
type Parsed struct {
	Output   string
	ExitCode int
}

// Generate returns a fresh marker pair built from the process id and a
// strictly increasing nanosecond stamp.
func Generate() Markers {
	stamp := nextStamp(time.Now().UnixNano())
	id := fmt.Sprintf("%d_%d", os.Getpid(), stamp)
	return Markers{
		Start: startPrefix + id + suffix,
		End:   endPrefix + id + suffix,
	}
}

func nextStamp(now int64) int64 {
	for {
		prev := lastStamp.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if lastStamp.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Wrap returns the shell snippet that brackets command with the markers:
//
//	echo <start>; { <command>; } 2>&1; echo <end>:$?
//
// The group keeps the command's own exit status for $? and merges stderr into
// stdout. The snippet assumes a POSIX-compatible interactive shell; fish and
// other shells without brace groups or $? are not supported.
func Wrap(command string, m Markers) string {
	return fmt.Sprintf("echo %s; { %s; } 2>&1; echo %s:$?", m.Start, command, m.End)
}

// Parse extracts the command output and exit code from captured pane text.
// It returns false while the command has not finished: the echoed start
// marker or the numeric end marker is not (yet) in the capture.
//
// The typed command line also contains both markers, so the start marker is
// only accepted at the beginning of a line and the end marker only when
// followed by ":" and digits, which the typed "$?" never is.
func Parse(captured string, m Markers) (Parsed, bool) {
	start := echoedStart(captured, m.Start)
	if start < 0 {
		return Parsed{}, false
	}
	body := start + len(m.Start)

	loc := endPattern(m.End).FindStringSubmatchIndex(captured[body:])
	if loc == nil {
		return Parsed{}, false
	}
	code, err := strconv.Atoi(captured[body+loc[2] : body+loc[3]])
	if err != nil {
		return Parsed{}, false
	}

	out := captured[body : body+loc[0]]
	out = strings.TrimPrefix(out, "\n")
	out = strings.TrimSuffix(out, "\n")
	return Parsed{Output: out, ExitCode: code}, true
}

// HasStart reports whether the echoed start marker is present.
func HasStart(captured string, m Markers) bool {
	return echoedStart(captured, m.Start) >= 0
}

// HasEnd reports whether the executed end marker, with its exit code, is present.
func HasEnd(captured string, m Markers) bool {
	return endPattern(m.End).MatchString(captured)
}

// echoedStart returns the offset of the start marker on its own line, or -1.
func echoedStart(captured, start string) int {
	if i := strings.Index(captured, "\n"+start); i >= 0 {
		return i + 1
	}
	// Scrollback trimmed right before the echo: the marker opens the buffer.
	if strings.HasPrefix(captured, start) {
		return 0
	}
	return -1
}

func endPattern(end string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(end) + `:(\d+)`)
}
