package marker

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

func testMarkers() Markers {
	return Markers{
		Start: "__TMUX_EXEC_START_42_1000__",
		End:   "__TMUX_EXEC_END_42_1000__",
	}
}

func TestGenerate_Format(t *testing.T) {
	m := Generate()
	pid := fmt.Sprintf("_%d_", os.Getpid())

	if !strings.HasPrefix(m.Start, "__TMUX_EXEC_START_") || !strings.HasSuffix(m.Start, "__") {
		t.Errorf("Start: got %q, want __TMUX_EXEC_START_<pid>_<stamp>__", m.Start)
	}
	if !strings.HasPrefix(m.End, "__TMUX_EXEC_END_") || !strings.HasSuffix(m.End, "__") {
		t.Errorf("End: got %q, want __TMUX_EXEC_END_<pid>_<stamp>__", m.End)
	}
	if !strings.Contains(m.Start, pid) {
		t.Errorf("Start %q should contain pid segment %q", m.Start, pid)
	}
	if strings.TrimPrefix(m.Start, "__TMUX_EXEC_START_") != strings.TrimPrefix(m.End, "__TMUX_EXEC_END_") {
		t.Errorf("Start and End should share an id: %q / %q", m.Start, m.End)
	}
}

func TestGenerate_Unique(t *testing.T) {
	const n = 10000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		m := Generate()
		if seen[m.Start] {
			t.Fatalf("duplicate marker after %d calls: %s", i, m.Start)
		}
		seen[m.Start] = true
	}
}

func TestGenerate_UniqueConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, Generate().End)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, s := range local {
				seen[s] = true
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("distinct markers: got %d, want %d", len(seen), workers*perWorker)
	}
}

func TestNextStamp_StrictlyIncreasing(t *testing.T) {
	a := nextStamp(5)
	b := nextStamp(5)
	c := nextStamp(1)
	if !(b > a && c > b) {
		t.Errorf("stamps not strictly increasing: %d, %d, %d", a, b, c)
	}
}

func TestWrap(t *testing.T) {
	m := testMarkers()
	got := Wrap("ls -la /tmp", m)
	want := "echo __TMUX_EXEC_START_42_1000__; { ls -la /tmp; } 2>&1; echo __TMUX_EXEC_END_42_1000__:$?"
	if got != want {
		t.Errorf("Wrap():\n got  %q\n want %q", got, want)
	}
}

func TestWrap_Deterministic(t *testing.T) {
	m := testMarkers()
	for _, cmd := range []string{"true", "a && b || c", "for i in 1 2; do echo $i; done", ""} {
		if Wrap(cmd, m) != Wrap(cmd, m) {
			t.Errorf("Wrap(%q) not deterministic", cmd)
		}
	}
}

// buildCapture lays out a pane the way a shell would after running Wrap:
// the typed command line, then the echoed start, output, and numeric end.
func buildCapture(m Markers, output string, code int) string {
	return "user@host:~$ " + Wrap("cmd", m) + "\n" +
		m.Start + "\n" +
		output + "\n" +
		fmt.Sprintf("%s:%d", m.End, code) + "\n" +
		"user@host:~$ "
}

func TestParse_RoundTrip(t *testing.T) {
	m := testMarkers()
	outputs := []string{
		"hello",
		"",
		"line1\nline2\nline3",
		"first\n\n\nafter blanks",
		"\nleading blank",
		"trailing blank\n",
		"contains __TMUX_EXEC_END_42_1000__ without code",
	}

	for _, out := range outputs {
		for code := 0; code <= 255; code++ {
			got, ok := Parse(buildCapture(m, out, code), m)
			if !ok {
				t.Fatalf("Parse(output=%q, code=%d): incomplete", out, code)
			}
			if got.Output != out || got.ExitCode != code {
				t.Fatalf("Parse(output=%q, code=%d): got %+v", out, code, got)
			}
		}
	}
}

func TestParse_Incomplete(t *testing.T) {
	m := testMarkers()
	tests := []struct {
		name     string
		captured string
	}{
		{"empty", ""},
		{"nothing yet", "user@host:~$ "},
		{"typed line only", "user@host:~$ " + Wrap("sleep 5", m)},
		{"started, still running", "user@host:~$ " + Wrap("sleep 5", m) + "\n" + m.Start + "\npartial output"},
		{"end without start", "output\n" + m.End + ":0\n"},
		{"typed end form", m.Start + "\nout\n" + m.End + ":$?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Parse(tt.captured, m); ok {
				t.Errorf("Parse(): got %+v, want incomplete", got)
			}
		})
	}
}

func TestParse_StartAtBufferBeginning(t *testing.T) {
	m := testMarkers()
	captured := m.Start + "\nhello\n" + m.End + ":3\n"

	got, ok := Parse(captured, m)
	if !ok {
		t.Fatal("Parse(): incomplete, want result")
	}
	if got.Output != "hello" || got.ExitCode != 3 {
		t.Errorf("Parse(): got %+v, want {hello 3}", got)
	}
}

func TestParse_IgnoresOtherMarkers(t *testing.T) {
	m := testMarkers()
	other := Markers{Start: "__TMUX_EXEC_START_42_999__", End: "__TMUX_EXEC_END_42_999__"}
	captured := buildCapture(other, "old", 1) + "\n" + buildCapture(m, "new", 0)

	got, ok := Parse(captured, m)
	if !ok {
		t.Fatal("Parse(): incomplete, want result")
	}
	if got.Output != "new" || got.ExitCode != 0 {
		t.Errorf("Parse(): got %+v, want {new 0}", got)
	}
}

func TestHasStartHasEnd(t *testing.T) {
	m := testMarkers()
	typed := "$ " + Wrap("make", m)

	if HasStart(typed, m) {
		t.Error("HasStart: typed line should not count as echoed start")
	}
	if HasEnd(typed, m) {
		t.Error("HasEnd: typed $? form should not count as end")
	}

	done := buildCapture(m, "ok", 0)
	if !HasStart(done, m) || !HasEnd(done, m) {
		t.Errorf("HasStart/HasEnd on finished capture: got %v/%v, want true/true",
			HasStart(done, m), HasEnd(done, m))
	}
}
