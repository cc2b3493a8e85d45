package cli

import (
	"fmt"
	"io"
)

// IO is where a command reports to. Results go to stdout; errors and
// warnings go to stderr.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []warning
}

// warning is a problem with one subject (usually a key) that did not fail
// the command as a whole.
type warning struct {
	subject string
	detail  string
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records a warning about subject. Warnings are printed by Finish,
// after the command's regular output.
func (o *IO) Warn(subject, detail string) {
	o.warnings = append(o.warnings, warning{subject: subject, detail: detail})
}

func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// Field prints one name=value line.
func (o *IO) Field(name string, value any) {
	_, _ = fmt.Fprintf(o.out, "%s=%v\n", name, value)
}

// Error prints err to stderr.
func (o *IO) Error(err error) {
	_, _ = fmt.Fprintln(o.errOut, "error:", err)
}

// Finish prints and forgets the collected warnings. It returns 1 if there
// were any, 0 otherwise.
func (o *IO) Finish() int {
	if len(o.warnings) == 0 {
		return 0
	}

	for _, w := range o.warnings {
		_, _ = fmt.Fprintf(o.errOut, "warning: %s: %s\n", w.subject, w.detail)
	}

	o.warnings = nil

	return 1
}
