package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_SplitArgs_Splits_Words_When_Quoted(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		line string
		want []string
	}{
		{line: "get k", want: []string{"get", "k"}},
		{line: "  set   k\tv  ", want: []string{"set", "k", "v"}},
		{line: `set k "hello world"`, want: []string{"set", "k", "hello world"}},
		{line: `set k 'it''s'`, want: []string{"set", "k", "its"}},
		{line: `set k "say \"hi\""`, want: []string{"set", "k", `say "hi"`}},
		{line: `set k 'a\b'`, want: []string{"set", "k", `a\b`}},
		{line: `set k a\ b`, want: []string{"set", "k", "a b"}},
		{line: `set k ""`, want: []string{"set", "k", ""}},
		{line: `set -t array k '[1, 2]'`, want: []string{"set", "-t", "array", "k", "[1, 2]"}},
	} {
		got, err := splitArgs(tt.line)
		if err != nil {
			t.Fatalf("splitArgs(%q): %v", tt.line, err)
		}

		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("splitArgs(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}

func Test_SplitArgs_Returns_Error_When_Quote_Unterminated(t *testing.T) {
	t.Parallel()

	for _, line := range []string{`set k "abc`, `set k 'abc`, `set k abc\`} {
		_, err := splitArgs(line)
		if !errors.Is(err, ErrUnterminatedQuote) {
			t.Errorf("splitArgs(%q) err=%v, want %v", line, err, ErrUnterminatedQuote)
		}
	}
}

func Test_CompleteCommand_Returns_Matching_Names(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]string{"set", "stats"}, completeCommand("s")); diff != "" {
		t.Errorf("completion mismatch (-want +got):\n%s", diff)
	}

	if got := completeCommand("zzz"); got != nil {
		t.Errorf("completion=%v, want nil", got)
	}
}

func Test_HistoryFile_Prefers_XDG_State_Home(t *testing.T) {
	t.Parallel()

	got := historyFile(map[string]string{"XDG_STATE_HOME": "/state", "HOME": "/home/u"})
	if want := filepath.Join("/state", "fcache", "history"); got != want {
		t.Errorf("historyFile=%q, want=%q", got, want)
	}

	got = historyFile(map[string]string{"HOME": "/home/u"})
	if want := filepath.Join("/home/u", ".fcache_history"); got != want {
		t.Errorf("historyFile=%q, want=%q", got, want)
	}

	if got := historyFile(nil); got != "" {
		t.Errorf("historyFile=%q, want empty", got)
	}
}

func Test_Shell_Runs_Script_And_Flushes_On_EOF(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	script := strings.Join([]string{
		"# comment lines are skipped",
		"set -t integer a 1",
		"get -t a",
		`set greeting "hello world"`,
		"get greeting",
		"has a",
		"del a",
		"has a",
		"",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell")

	if got, want := code, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	want := "integer\t1\nhello world\ntrue\ndeleted=1\nfalse\n"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}

	if got, want := c.MustRun("get", "greeting"), "hello world"; got != want {
		t.Errorf("get after shell=%q, want=%q", got, want)
	}
}

func Test_Shell_Keeps_Going_When_A_Line_Fails(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	script := "bogus\nget missing\nset k 'open\nset k v\nget k\nexit\nset never v\n"

	stdout, stderr, code := c.RunWithInput(script, "shell")

	if got, want := code, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, "v\n"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	AssertContains(t, stderr, "unknown command: bogus")
	AssertContains(t, stderr, "key not found: missing")
	AssertContains(t, stderr, "unterminated quote")

	if got, want := c.MustRun("has", "never"), "false"; got != want {
		t.Errorf("has never=%q, want=%q (lines after exit must not run)", got, want)
	}
}

func Test_Shell_Flush_Writes_Pending_Changes(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	stdout, _, code := c.RunWithInput("set k v\nstats\nflush\nstats\n", "shell")

	if got, want := code, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d", got, want)
	}

	if got, want := strings.Count(stdout, "pending_writes=1"), 1; got != want {
		t.Errorf("pending_writes=1 count=%d, want=%d\nstdout:\n%s", got, want, stdout)
	}

	if got, want := strings.Count(stdout, "pending_writes=0"), 1; got != want {
		t.Errorf("pending_writes=0 count=%d, want=%d\nstdout:\n%s", got, want, stdout)
	}
}

func Test_Shell_Help_Lists_Commands(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	stdout := c.mustRunWithInput("help\n", "shell")

	AssertContains(t, stdout, "Commands:")
	AssertContains(t, stdout, "get <key>")
	AssertContains(t, stdout, "flush")
	AssertContains(t, stdout, "exit")
}

func Test_Shell_Flushes_And_Exits_When_Signaled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := map[string]string{"HOME": filepath.Join(dir, "home")}

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	go func() {
		_, _ = pw.Write([]byte("set k v\nhas k\n"))
	}()

	out := newNotifyWriter("true\n")
	sigCh := make(chan os.Signal, 1)

	go func() {
		<-out.seen
		sigCh <- syscall.SIGTERM
	}()

	var errBuf bytes.Buffer

	code := Run(pr, out, &errBuf, []string{"fcache", "--cwd", dir, "shell"}, env, sigCh)

	if got, want := code, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, errBuf.String())
	}

	AssertContains(t, out.String(), "received terminated, flushing")

	var stdout bytes.Buffer

	code = Run(nil, &stdout, &errBuf, []string{"fcache", "--cwd", dir, "get", "k"}, env, nil)
	if got, want := code, 0; got != want {
		t.Fatalf("get exitCode=%d, want=%d\nstderr: %s", got, want, errBuf.String())
	}

	if got, want := stdout.String(), "v\n"; got != want {
		t.Errorf("get=%q, want=%q", got, want)
	}
}

func (r *CLI) mustRunWithInput(stdin string, args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.RunWithInput(stdin, args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return stdout
}

// notifyWriter closes seen once the written output contains want.
type notifyWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	want string
	once sync.Once
	seen chan struct{}
}

func newNotifyWriter(want string) *notifyWriter {
	return &notifyWriter{want: want, seen: make(chan struct{})}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.buf.Write(p)
	if strings.Contains(w.buf.String(), w.want) {
		w.once.Do(func() { close(w.seen) })
	}

	return n, err
}

func (w *notifyWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.buf.String()
}
