package invoke

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultGracePeriod is how long a cancelled tool has to exit after the
// interrupt signal before it is killed.
const DefaultGracePeriod = 5 * time.Second

// OSInvoker implements Invoker using os/exec.
type OSInvoker struct {
	GracePeriod time.Duration

	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// NewOSInvoker returns an OSInvoker with the default grace period.
func NewOSInvoker() *OSInvoker {
	return &OSInvoker{GracePeriod: DefaultGracePeriod}
}

func (o *OSInvoker) Invoke(ctx context.Context, c Command) (*Result, error) {
	path, err := o.resolve(c)
	if err != nil {
		return nil, &ToolNotFoundError{Tool: c.Path, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Stdin = c.Stdin
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = o.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGracePeriod
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, c.Stdout)
	cmd.Stderr = tee(&stderr, c.Stderr)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return &Result{ExitCode: -1, Interrupted: true}, nil
		}
		return nil, &LaunchError{Tool: c.Path, Err: err}
	}

	waitErr := cmd.Wait()
	res := &Result{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		Duration:    time.Since(start),
		Interrupted: ctx.Err() != nil,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case res.Interrupted:
			res.ExitCode = -1
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// Exited, but a grandchild kept the output pipes open.
		default:
			return res, &LaunchError{Tool: c.Path, Err: waitErr}
		}
	}
	return res, nil
}

func (o *OSInvoker) resolve(c Command) (string, error) {
	lookPath := o.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	name := c.Path
	if name == "" {
		return "", exec.ErrNotFound
	}
	// Relative paths with a separator are relative to the tool's directory.
	if strings.ContainsRune(name, filepath.Separator) && !filepath.IsAbs(name) && c.Dir != "" {
		name = filepath.Join(c.Dir, name)
	}
	return lookPath(name)
}

func tee(buf *bytes.Buffer, live io.Writer) io.Writer {
	if live == nil {
		return buf
	}
	return io.MultiWriter(buf, live)
}

// mergeEnv overlays extra on base, keeping the last value for each key.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, override := extra[k]; override {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
