package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/peterh/liner"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/filecache/pkg/filecache"
)

const shellPrompt = "fcache> "

// lineReader is the subset of [liner.State] the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// scannerReader reads lines from a non-terminal input.
type scannerReader struct {
	sc *bufio.Scanner
}

func (r *scannerReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}

	if err := r.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scannerReader) AppendHistory(string) {}

func (*scannerReader) Close() error { return nil }

// ShellCmd returns the shell command. It runs cache commands read line by
// line against one open cache until EOF, "exit", or a signal on sigCh.
func ShellCmd(c *filecache.Cache, now func() time.Time, in io.Reader, env map[string]string, sigCh <-chan os.Signal) *Command {
	return &Command{
		Name:  "shell",
		Short: "Run commands interactively in one session",
		Long: `Read commands line by line and run them against one open cache.

Changes are flushed on "flush", on exit, and on SIGINT/SIGTERM.
Arguments may be quoted with ' or ".`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			sh := &shell{cache: c, now: now, sigCh: sigCh, history: historyFile(env)}

			return sh.run(ctx, o, newLineReader(in))
		},
	}
}

type shell struct {
	cache   *filecache.Cache
	now     func() time.Time
	sigCh   <-chan os.Signal
	history string
}

type lineResult struct {
	line string
	err  error
}

func (s *shell) run(ctx context.Context, o *IO, r lineReader) error {
	defer func() { _ = r.Close() }()

	if st, ok := r.(*liner.State); ok {
		s.loadHistory(st)
		defer s.saveHistory(st)
	}

	next := make(chan struct{}, 1)
	lines := make(chan lineResult, 1)

	// A signal can end the loop while this goroutine is blocked in Prompt.
	// It stays there until the input yields a line or the process exits.
	go func() {
		for range next {
			line, err := r.Prompt(shellPrompt)
			lines <- lineResult{line: line, err: err}
		}
	}()
	defer close(next)

	for {
		next <- struct{}{}

		var res lineResult

		select {
		case <-ctx.Done():
			return nil
		case sig := <-s.sigCh:
			o.Println("received " + sig.String() + ", flushing")

			return nil
		case res = <-lines:
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) || errors.Is(res.err, liner.ErrPromptAborted) {
				return nil
			}

			return fmt.Errorf("reading input: %w", res.err)
		}

		line := strings.TrimSpace(res.line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r.AppendHistory(line)

		done := s.exec(ctx, o, line)
		if done {
			return nil
		}
	}
}

// exec runs one line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, o *IO, line string) bool {
	args, err := splitArgs(line)
	if err != nil {
		o.Error(err)

		return false
	}

	switch args[0] {
	case "exit", "quit":
		return true
	case "help", "?":
		s.printHelp(o)

		return false
	case "flush":
		if err := s.cache.Flush(); err != nil {
			o.Error(err)
		}

		return false
	}

	cmd := findCommand(cacheCommands(s.cache, s.now), args[0])
	if cmd == nil {
		o.Error(fmt.Errorf("%w: %s", ErrUnknownCommand, args[0]))

		return false
	}

	_ = cmd.Run(ctx, o, args[1:])
	_ = o.Finish()

	return false
}

func (s *shell) printHelp(o *IO) {
	o.Println("Commands:")

	for _, cmd := range cacheCommands(s.cache, s.now) {
		o.Println(cmd.HelpLine())
	}

	o.Printf("  %-34s %s\n", "flush", "Write pending changes to disk")
	o.Printf("  %-34s %s\n", "exit", "Flush and leave the shell")
}

func (s *shell) loadHistory(st *liner.State) {
	if s.history == "" {
		return
	}

	f, err := os.Open(s.history)
	if err != nil {
		return
	}

	defer func() { _ = f.Close() }()

	_, _ = st.ReadHistory(f)
}

func (s *shell) saveHistory(st *liner.State) {
	if s.history == "" {
		return
	}

	f, err := os.Create(s.history)
	if err != nil {
		return
	}

	defer func() { _ = f.Close() }()

	_, _ = st.WriteHistory(f)
}

// newLineReader returns a liner prompt when in is a terminal and a plain
// line scanner otherwise.
func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		st := liner.NewLiner()
		st.SetCtrlCAborts(true)
		st.SetCompleter(completeCommand)

		return st
	}

	if in == nil {
		in = strings.NewReader("")
	}

	return &scannerReader{sc: bufio.NewScanner(in)}
}

func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)

	return err == nil
}

var shellCommandNames = []string{"clear", "del", "exit", "flush", "get", "has", "help", "quit", "set", "stats", "ttl"}

func completeCommand(line string) []string {
	var out []string

	for _, name := range shellCommandNames {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}

	return out
}

// historyFile returns the path to the shell history file.
func historyFile(env map[string]string) string {
	if state := env["XDG_STATE_HOME"]; state != "" {
		return filepath.Join(state, "fcache", "history")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".fcache_history")
	}

	return ""
}

// splitArgs splits a shell line into words. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)

			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}

	if inWord {
		args = append(args, cur.String())
	}

	if len(args) == 0 {
		return nil, ErrKeyRequired
	}

	return slices.Clip(args), nil
}
