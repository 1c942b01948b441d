// Package types holds the configuration types shared by every shipyard stage.
package types

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values applied when neither a file nor the environment overrides them.
const (
	DefaultOutputRoot   = "target"
	DefaultTargetTriple = "wasm32-unknown-unknown"
	DefaultCrate        = "my_favorite_nightmare"
	DefaultChannel      = "wasm"
	DefaultTailLines    = 20
)

// Tools names the external executables stages launch.
type Tools struct {
	Cargo  string `yaml:"cargo,omitempty" json:"cargo"`
	Bevy   string `yaml:"bevy,omitempty" json:"bevy"`
	Butler string `yaml:"butler,omitempty" json:"butler"`
}

// Configuration is the resolved, read-only input to every stage. It is built
// once per invocation by the config package and must not be mutated after.
type Configuration struct {
	ProjectID    string            `json:"project_id,omitempty"`
	WorkDir      string            `json:"work_dir"`
	OutputRoot   string            `json:"output_root"`
	TargetTriple string            `json:"target"`
	Crate        string            `json:"crate"`
	BundleDir    string            `json:"bundle_dir"`
	Channel      string            `json:"channel"`
	TailLines    int               `json:"tail_lines"`
	Tools        Tools             `json:"tools"`
	Commands     map[string]string `json:"commands,omitempty"`
}

// ChannelTarget returns the butler push target, e.g. "abc123:wasm".
func (c *Configuration) ChannelTarget() string {
	return c.ProjectID + ":" + c.Channel
}

// Abs resolves a path relative to the working directory.
func (c *Configuration) Abs(path string) string {
	if filepath.IsAbs(path) || c.WorkDir == "" {
		return path
	}
	return filepath.Join(c.WorkDir, path)
}

// CommandOverride returns the command line configured for a stage, if any.
func (c *Configuration) CommandOverride(stage string) (string, bool) {
	line, ok := c.Commands[stage]
	return line, ok && line != ""
}

// ProjectFile represents shipyard.yaml (and the per-user config.yaml, which
// has the same shape). Every field is optional.
type ProjectFile struct {
	Crate      string            `yaml:"crate,omitempty"`
	OutputRoot string            `yaml:"output_root,omitempty"`
	BundleDir  string            `yaml:"bundle_dir,omitempty"`
	Target     string            `yaml:"target,omitempty"`
	Channel    string            `yaml:"channel,omitempty"`
	TailLines  int               `yaml:"tail_lines,omitempty"`
	Tools      Tools             `yaml:"tools,omitempty"`
	Commands   map[string]string `yaml:"commands,omitempty"`
}

// ParseProjectFile parses raw YAML bytes into a ProjectFile.
func ParseProjectFile(data []byte) (*ProjectFile, error) {
	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing project file: %w", err)
	}
	return &pf, nil
}

// DefaultTools returns the executables used when nothing overrides them.
func DefaultTools() Tools {
	return Tools{Cargo: "cargo", Bevy: "bevy", Butler: "butler"}
}

// DefaultBundleDir is the directory `bevy build web --bundle` writes for crate.
func DefaultBundleDir(outputRoot, crate string) string {
	return filepath.Join(outputRoot, "bevy_web", "web", crate)
}
