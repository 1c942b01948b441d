package invoke

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Tool is an external executable the pipeline depends on.
type Tool struct {
	Name        string
	Path        string
	VersionArgs []string
}

// ToolStatus reports whether a Tool could be run and what it says its
// version is.
type ToolStatus struct {
	Tool    Tool
	Found   bool
	Version string
	Err     error
}

const probeTimeout = 10 * time.Second

// Probe runs each tool's version command through inv. A tool that is not on
// PATH is reported as not found; a tool that runs but exits non-zero is
// found with the error recorded.
func Probe(ctx context.Context, inv Invoker, tools []Tool) []ToolStatus {
	statuses := make([]ToolStatus, 0, len(tools))
	for _, t := range tools {
		statuses = append(statuses, probeOne(ctx, inv, t))
	}
	return statuses
}

func probeOne(ctx context.Context, inv Invoker, t Tool) ToolStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := ToolStatus{Tool: t}
	res, err := inv.Invoke(ctx, Command{Path: t.Path, Args: t.VersionArgs})
	if err != nil {
		var notFound *ToolNotFoundError
		st.Found = !errors.As(err, &notFound)
		st.Err = err
		return st
	}
	st.Found = true
	out := res.Stdout
	if strings.TrimSpace(out) == "" {
		out = res.Stderr
	}
	st.Version = firstLine(out)
	if res.ExitCode != 0 {
		st.Err = errors.New("version command exited non-zero")
	}
	return st
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
