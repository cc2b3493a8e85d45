package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Arg is a positional argument of a [Command].
type Arg struct {
	Name string

	// Missing is the error reported when the argument is absent.
	Missing error

	// Repeated accepts one or more values. Only the last Arg may repeat.
	Repeated bool
}

var (
	keyArg   = Arg{Name: "key", Missing: ErrKeyRequired}
	keysArg  = Arg{Name: "key", Missing: ErrKeyRequired, Repeated: true}
	valueArg = Arg{Name: "value", Missing: ErrValueRequired}
)

// Command is one fcache subcommand. Run checks flags and the positional
// argument count before Exec sees the arguments.
type Command struct {
	Name string
	Args []Arg

	// Flags may be nil for commands without flags.
	Flags *flag.FlagSet

	Short    string
	Long     string
	Examples []string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// Usage renders the invocation, e.g. "set <key> <value> [flags]".
func (c *Command) Usage() string {
	var b strings.Builder

	b.WriteString(c.Name)

	for _, a := range c.Args {
		b.WriteString(" <" + a.Name + ">")

		if a.Repeated {
			b.WriteString("...")
		}
	}

	if c.Flags != nil && c.Flags.HasFlags() {
		b.WriteString(" [flags]")
	}

	return b.String()
}

// HelpLine is the entry for the command list.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage(), c.Short)
}

// PrintHelp writes the full help for "fcache <cmd> --help" to w.
func (c *Command) PrintHelp(w io.Writer) {
	fprintln(w, "Usage: fcache", c.Usage())
	fprintln(w)

	if c.Long != "" {
		fprintln(w, c.Long)
	} else {
		fprintln(w, c.Short)
	}

	if c.Flags != nil && c.Flags.HasFlags() {
		fprintln(w)
		fprintln(w, "Flags:")

		c.Flags.SetOutput(w)
		c.Flags.PrintDefaults()
	}

	if len(c.Examples) > 0 {
		fprintln(w)
		fprintln(w, "Examples:")

		for _, ex := range c.Examples {
			fprintln(w, "  fcache", ex)
		}
	}
}

// Run parses args and executes the command, returning the exit code.
// Flag and argument errors print the help to stderr.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	if c.Flags == nil {
		c.Flags = flag.NewFlagSet(c.Name, flag.ContinueOnError)
	}

	c.Flags.SetOutput(io.Discard)

	err := c.Flags.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		c.PrintHelp(o.out)

		return 0
	}

	if err == nil {
		err = c.checkArgs(c.Flags.Args())
	}

	if err != nil {
		o.Error(err)
		fprintln(o.errOut)
		c.PrintHelp(o.errOut)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.Error(err)

		return 1
	}

	return 0
}

func (c *Command) checkArgs(args []string) error {
	for i, a := range c.Args {
		if i >= len(args) {
			return a.Missing
		}

		if a.Repeated {
			return nil
		}
	}

	if len(args) > len(c.Args) {
		return fmt.Errorf("%w: got %d, want %d", ErrTooManyArgs, len(args), len(c.Args))
	}

	return nil
}
