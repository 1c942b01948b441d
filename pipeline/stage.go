package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/initializ/shipyard/types"
	"github.com/mattn/go-shellwords"
)

// Stage is a named unit of work wrapping exactly one external tool
// invocation. Every string field except Name and Description is a
// text/template rendered against the resolved Configuration.
type Stage struct {
	Name        string
	Description string

	// Command is the argv template: the executable followed by its arguments.
	// A command line configured for this stage name replaces it.
	Command []string

	// WorkDir is relative to Configuration.WorkDir. Empty means WorkDir itself.
	WorkDir string

	Env map[string]string

	// Requires lists path patterns that must each match at least one file
	// before dispatch. Produces lists patterns that must match after the
	// tool exits zero.
	Requires []string
	Produces []string

	// Interactive stages get the terminal's stdin and a live copy of their
	// output.
	Interactive bool

	// Guard, when set, may skip the stage after its preconditions hold.
	Guard Guard
}

// Guard decides just before dispatch whether a stage still has work to do,
// and is told when the stage succeeded. Guards hold no per-run state: what
// Check observed travels in the Decision handed back to Done.
type Guard interface {
	Check(cfg *types.Configuration) (Decision, error)
	Done(cfg *types.Configuration, d Decision) error
}

// Decision is a Guard's verdict for one dispatch.
type Decision struct {
	Skip   bool
	Reason string

	// Token is opaque to the runner, e.g. the digest Check computed.
	Token string
}

// Invocation is a Stage rendered against a Configuration.
type Invocation struct {
	Argv     []string
	Dir      string
	Env      map[string]string
	Requires []string
	Produces []string
}

// Render expands the stage's templates. Artifact patterns are returned as
// absolute paths.
func (s Stage) Render(cfg *types.Configuration) (*Invocation, error) {
	argv := s.Command
	if line, ok := cfg.CommandOverride(s.Name); ok {
		words, err := shellwords.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("parsing command override for %s: %w", s.Name, err)
		}
		argv = words
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("stage %s has no command", s.Name)
	}

	inv := &Invocation{}
	var err error
	if inv.Argv, err = renderAll(s.Name+".command", argv, cfg); err != nil {
		return nil, err
	}
	if inv.Argv[0] == "" {
		return nil, fmt.Errorf("stage %s: executable renders empty", s.Name)
	}

	dir, err := render(s.Name+".workdir", s.WorkDir, cfg)
	if err != nil {
		return nil, err
	}
	inv.Dir = cfg.Abs(dir)
	if dir == "" {
		inv.Dir = cfg.WorkDir
	}

	if len(s.Env) > 0 {
		inv.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			if inv.Env[k], err = render(s.Name+".env."+k, v, cfg); err != nil {
				return nil, err
			}
		}
	}

	if inv.Requires, err = renderPaths(s.Name+".requires", s.Requires, cfg); err != nil {
		return nil, err
	}
	if inv.Produces, err = renderPaths(s.Name+".produces", s.Produces, cfg); err != nil {
		return nil, err
	}
	return inv, nil
}

func renderAll(name string, in []string, cfg *types.Configuration) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, s := range in {
		v, err := render(fmt.Sprintf("%s[%d]", name, i), s, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func renderPaths(name string, in []string, cfg *types.Configuration) ([]string, error) {
	paths, err := renderAll(name, in, cfg)
	if err != nil {
		return nil, err
	}
	for i, p := range paths {
		paths[i] = cfg.Abs(p)
	}
	return paths, nil
}

func render(name, text string, cfg *types.Configuration) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", name, err)
	}
	return buf.String(), nil
}

// missing returns the patterns that match no file.
func missing(patterns []string) ([]string, error) {
	var absent []string
	for _, p := range patterns {
		ok, err := exists(p)
		if err != nil {
			return nil, err
		}
		if !ok {
			absent = append(absent, p)
		}
	}
	return absent, nil
}

func exists(pattern string) (bool, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		_, err := os.Stat(pattern)
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return false, fmt.Errorf("bad artifact pattern %q: %w", pattern, err)
	}
	return len(matches) > 0, nil
}
