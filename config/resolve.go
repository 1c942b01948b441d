// Package config resolves the run-time Configuration from defaults, project
// and user files, and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/initializ/shipyard/logging"
	"github.com/initializ/shipyard/types"
	"github.com/initializ/shipyard/validate"
)

// Environment variables read by Resolve.
const (
	EnvProjectID  = "ITCH_IO_PROJECT_ID"
	EnvOutputRoot = "SHIPYARD_OUTPUT_ROOT"
	EnvTarget     = "SHIPYARD_TARGET"
	EnvBundleDir  = "SHIPYARD_BUNDLE_DIR"
	EnvCrate      = "SHIPYARD_CRATE"
	EnvTailLines  = "SHIPYARD_TAIL_LINES"
	EnvCargo      = "SHIPYARD_CARGO"
	EnvBevy       = "SHIPYARD_BEVY"
	EnvButler     = "SHIPYARD_BUTLER"
)

const (
	// ProjectFileName is looked up in the working directory.
	ProjectFileName = "shipyard.yaml"

	userConfigRelPath = "shipyard/config.yaml"
)

// Options controls a single Resolve call.
type Options struct {
	// WorkDir is the application checkout. Defaults to the process working directory.
	WorkDir string

	// ProjectFile names an explicit project file, which must exist. When
	// empty, ProjectFileName in WorkDir is used if present.
	ProjectFile string

	// UserFile overrides the XDG user config location. Missing user files are ignored.
	UserFile string

	// Required lists the keys (environment variable names) that must be
	// non-empty after resolution.
	Required []string

	// LookupEnv reads the environment. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	Logger logging.Logger
}

// MissingConfigError reports a required configuration value that is absent.
type MissingConfigError struct {
	Key string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("MissingConfig{key=%q}", e.Key)
}

// InvalidConfigError reports a project or user file, or a resolved value,
// that could not be read or failed validation.
type InvalidConfigError struct {
	Source   string
	Problems []string
	Err      error
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration in %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

func fileError(path string, err error) *InvalidConfigError {
	return &InvalidConfigError{Source: path, Problems: []string{err.Error()}, Err: err}
}

// Resolve builds the Configuration for one invocation. It never writes to
// the filesystem and fails before any stage runs when a required key is
// missing.
func Resolve(opts Options) (*types.Configuration, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	b := newBuilder(workDir)

	userFile, err := userFilePath(opts.UserFile)
	if err != nil {
		return nil, err
	}
	if userFile != "" {
		if err := b.mergeFile(userFile, false); err != nil {
			return nil, err
		}
		logger.Debug("merged user config", map[string]any{"path": userFile})
	}

	projectFile := opts.ProjectFile
	mustExist := projectFile != ""
	if projectFile == "" {
		projectFile = filepath.Join(workDir, ProjectFileName)
	} else if !filepath.IsAbs(projectFile) {
		projectFile = filepath.Join(workDir, projectFile)
	}
	if err := b.mergeFile(projectFile, mustExist); err != nil {
		return nil, err
	}

	if err := b.mergeEnv(lookup); err != nil {
		return nil, err
	}

	cfg := b.build()

	for _, key := range opts.Required {
		if value(cfg, key) == "" {
			return nil, &MissingConfigError{Key: key}
		}
	}

	result := validate.ValidateConfiguration(cfg)
	if !result.IsValid() {
		return nil, &InvalidConfigError{Source: "resolved configuration", Problems: result.Errors}
	}
	if err := validate.ValidateProjectID(cfg.ProjectID); err != nil {
		if slices.Contains(opts.Required, EnvProjectID) {
			return nil, &InvalidConfigError{Source: EnvProjectID, Problems: []string{err.Error()}}
		}
		logger.Warn("ignoring unusable project id", map[string]any{"error": err.Error()})
	}
	for _, w := range result.Warnings {
		logger.Warn("configuration warning", map[string]any{"warning": w})
	}

	logger.Debug("configuration resolved", map[string]any{
		"work_dir":   cfg.WorkDir,
		"output":     cfg.OutputRoot,
		"bundle_dir": cfg.BundleDir,
		"target":     cfg.TargetTriple,
		"project_id": cfg.ProjectID != "",
	})
	return cfg, nil
}

// value returns the resolved value a required key refers to.
func value(cfg *types.Configuration, key string) string {
	switch key {
	case EnvProjectID:
		return cfg.ProjectID
	case EnvOutputRoot:
		return cfg.OutputRoot
	case EnvTarget:
		return cfg.TargetTriple
	case EnvBundleDir:
		return cfg.BundleDir
	case EnvCrate:
		return cfg.Crate
	default:
		return ""
	}
}

func userFilePath(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil
			}
			return "", fileError(override, fmt.Errorf("checking user config: %w", err))
		}
		return override, nil
	}
	// SearchConfigFile only reads; it fails when no candidate exists.
	path, err := xdg.SearchConfigFile(userConfigRelPath)
	if err != nil {
		return "", nil
	}
	return path, nil
}

// builder accumulates overrides in precedence order before the immutable
// Configuration is produced.
type builder struct {
	workDir    string
	projectID  string
	bundleSet  bool
	commands   map[string]string
	tailLines  int
	tools      types.Tools
	outputRoot string
	target     string
	crate      string
	channel    string
	bundleDir  string
}

func newBuilder(workDir string) *builder {
	return &builder{
		workDir:    workDir,
		commands:   make(map[string]string),
		tailLines:  types.DefaultTailLines,
		tools:      types.DefaultTools(),
		outputRoot: types.DefaultOutputRoot,
		target:     types.DefaultTargetTriple,
		crate:      types.DefaultCrate,
		channel:    types.DefaultChannel,
	}
}

func (b *builder) mergeFile(path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return nil
		}
		return fileError(path, fmt.Errorf("reading config: %w", err))
	}

	problems, err := validate.ValidateProjectFile(data)
	if err != nil {
		return fileError(path, err)
	}
	if len(problems) > 0 {
		return &InvalidConfigError{Source: path, Problems: problems}
	}

	pf, err := types.ParseProjectFile(data)
	if err != nil {
		return fileError(path, err)
	}
	b.apply(pf)
	return nil
}

func (b *builder) apply(pf *types.ProjectFile) {
	setIf(&b.crate, pf.Crate)
	setIf(&b.outputRoot, pf.OutputRoot)
	setIf(&b.target, pf.Target)
	setIf(&b.channel, pf.Channel)
	if pf.BundleDir != "" {
		b.bundleDir = pf.BundleDir
		b.bundleSet = true
	}
	if pf.TailLines > 0 {
		b.tailLines = pf.TailLines
	}
	setIf(&b.tools.Cargo, pf.Tools.Cargo)
	setIf(&b.tools.Bevy, pf.Tools.Bevy)
	setIf(&b.tools.Butler, pf.Tools.Butler)
	for name, line := range pf.Commands {
		b.commands[name] = line
	}
}

func (b *builder) mergeEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	b.projectID = get(EnvProjectID)
	setIf(&b.outputRoot, get(EnvOutputRoot))
	setIf(&b.target, get(EnvTarget))
	setIf(&b.crate, get(EnvCrate))
	if dir := get(EnvBundleDir); dir != "" {
		b.bundleDir = dir
		b.bundleSet = true
	}
	if raw := get(EnvTailLines); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return &InvalidConfigError{Source: EnvTailLines, Problems: []string{fmt.Sprintf("%q is not a positive integer", raw)}}
		}
		b.tailLines = n
	}
	setIf(&b.tools.Cargo, get(EnvCargo))
	setIf(&b.tools.Bevy, get(EnvBevy))
	setIf(&b.tools.Butler, get(EnvButler))
	return nil
}

func (b *builder) build() *types.Configuration {
	bundleDir := b.bundleDir
	if !b.bundleSet {
		bundleDir = types.DefaultBundleDir(b.outputRoot, b.crate)
	}
	var commands map[string]string
	if len(b.commands) > 0 {
		commands = make(map[string]string, len(b.commands))
		for k, v := range b.commands {
			commands[k] = v
		}
	}
	return &types.Configuration{
		ProjectID:    b.projectID,
		WorkDir:      b.workDir,
		OutputRoot:   b.outputRoot,
		TargetTriple: b.target,
		Crate:        b.crate,
		BundleDir:    bundleDir,
		Channel:      b.channel,
		TailLines:    b.tailLines,
		Tools:        b.tools,
		Commands:     commands,
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
