package procexec

import (
	"strings"
	"time"
)

// Stream identifies which pipe a line was read from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, arg := range c.Args {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Line is one line of process output.
type Line struct {
	Stream  Stream
	Text    string
	Attempt int
}

// LineHandler receives output lines as the process produces them. Calls are
// serialized per Execute call.
type LineHandler func(Line)

// Policy bounds how often a failing command is re-invoked.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Once is the policy for commands that must not be retried.
var Once = Policy{MaxAttempts: 1}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Result describes a successful execution.
type Result struct {
	Attempts int
	Stdout   string
	Stderr   string
}
