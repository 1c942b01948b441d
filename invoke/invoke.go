// Package invoke launches external build and publish tools and captures
// their exit status and output.
package invoke

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Command describes one external process launch.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  map[string]string

	// Stdin is attached to the child when set; otherwise it reads /dev/null.
	Stdin io.Reader

	// Stdout and Stderr receive a live copy of the streams in addition to
	// the captured buffers. Both are optional.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for display.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return `''`
	}
	if strings.ContainsAny(s, " \t\n'\"\\$`") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// Result holds the outcome of a process that was started.
type Result struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	Duration    time.Duration
	Interrupted bool
}

// Invoker launches exactly one external process per call and waits for it.
// A non-zero exit is reported through Result.ExitCode, not as an error;
// errors are reserved for processes that could not be started.
type Invoker interface {
	Invoke(ctx context.Context, cmd Command) (*Result, error)
}

// ToolNotFoundError means the executable is not installed or not on PATH.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("ToolNotFound{tool=%q}: %v", e.Tool, e.Err)
}

func (e *ToolNotFoundError) Unwrap() error { return e.Err }

// LaunchError means the executable exists but the process could not be started.
type LaunchError struct {
	Tool string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("LaunchError{tool=%q}: %v", e.Tool, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Tail returns the last n lines of s.
func Tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" || n <= 0 {
		return ""
	}
	idx := len(s)
	for range n {
		i := strings.LastIndexByte(s[:idx], '\n')
		if i < 0 {
			return s
		}
		idx = i
	}
	return s[idx+1:]
}
