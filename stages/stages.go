// Package stages defines the stage sets shipyard can run. Each set is an
// ordered list of pipeline stages plus the configuration keys it needs.
package stages

import (
	"fmt"
	"sort"

	"github.com/initializ/shipyard/bundle"
	"github.com/initializ/shipyard/config"
	"github.com/initializ/shipyard/invoke"
	"github.com/initializ/shipyard/pipeline"
	"github.com/initializ/shipyard/types"
)

// Stage set names, as typed on the command line.
const (
	SetDev         = "dev"
	SetWasmBuild   = "wasm-build"
	SetWasmCheck   = "wasm-check"
	SetWasmDeploy  = "wasm-deploy"
	SetWasmRelease = "wasm-release"
)

// Stage names. Command overrides in shipyard.yaml are keyed by these.
const (
	StageDevRun      = "dev-run"
	StageWasmBundle  = "wasm-bundle"
	StageWasmCheck   = "wasm-check"
	StageWasmPublish = "wasm-publish"
)

// Options adjusts stage definitions for one invocation.
type Options struct {
	// SkipUnchanged guards the publish stage with the bundle ledger.
	SkipUnchanged bool
}

// Set is a named, ordered group of stages.
type Set struct {
	Name        string
	Description string
	Required    []string
	Stages      []pipeline.Stage
}

// Pipeline builds the executable pipeline for this set.
func (s Set) Pipeline(r *pipeline.Runner) *pipeline.Pipeline {
	return pipeline.New(s.Name, r, s.Stages...)
}

// Sets returns every stage set in display order.
func Sets(opts Options) []Set {
	publish := WasmPublish(opts)
	return []Set{
		{
			Name:        SetDev,
			Description: "Run the native development build",
			Stages:      []pipeline.Stage{DevRun()},
		},
		{
			Name:        SetWasmBuild,
			Description: "Compile to WebAssembly and produce the web bundle",
			Required:    []string{config.EnvOutputRoot, config.EnvBundleDir},
			Stages:      []pipeline.Stage{WasmBundle()},
		},
		{
			Name:        SetWasmCheck,
			Description: "Compile-check the WebAssembly target without bundling",
			Required:    []string{config.EnvTarget},
			Stages:      []pipeline.Stage{WasmCheck()},
		},
		{
			Name:        SetWasmDeploy,
			Description: "Push the built web bundle to the itch.io channel",
			Required:    []string{config.EnvProjectID},
			Stages:      []pipeline.Stage{publish},
		},
		{
			Name:        SetWasmRelease,
			Description: "Build the web bundle, then push it",
			Required:    []string{config.EnvProjectID, config.EnvOutputRoot, config.EnvBundleDir},
			Stages:      []pipeline.Stage{WasmBundle(), publish},
		},
	}
}

// Lookup returns the named stage set.
func Lookup(name string, opts Options) (Set, error) {
	for _, s := range Sets(opts) {
		if s.Name == name {
			return s, nil
		}
	}
	return Set{}, fmt.Errorf("unknown stage set %q (known: %v)", name, Names())
}

// Names returns the stage set names, sorted.
func Names() []string {
	sets := Sets(Options{})
	names := make([]string, 0, len(sets))
	for _, s := range sets {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// DevRun launches the game natively. Its output goes to the terminal as it
// happens.
func DevRun() pipeline.Stage {
	return pipeline.Stage{
		Name:        StageDevRun,
		Description: "bevy run (native)",
		Command:     []string{"{{.Tools.Bevy}}", "run"},
		Interactive: true,
	}
}

// WasmBundle compiles a release build for the web and writes the bundle.
func WasmBundle() pipeline.Stage {
	return pipeline.Stage{
		Name:        StageWasmBundle,
		Description: "bevy web release bundle",
		Command:     []string{"{{.Tools.Bevy}}", "build", "--yes", "--release", "web", "--bundle"},
		Produces:    []string{"{{.BundleDir}}"},
	}
}

// WasmCheck type-checks the crate for the WebAssembly target.
func WasmCheck() pipeline.Stage {
	return pipeline.Stage{
		Name:        StageWasmCheck,
		Description: "cargo check for the wasm target",
		Command:     []string{"{{.Tools.Cargo}}", "check", "--target", "{{.TargetTriple}}"},
	}
}

// WasmPublish pushes the bundle with butler. It requires the bundle a
// previous wasm-build produced.
func WasmPublish(opts Options) pipeline.Stage {
	s := pipeline.Stage{
		Name:        StageWasmPublish,
		Description: "butler push to <project>:<channel>",
		Command:     []string{"{{.Tools.Butler}}", "push", "{{.BundleDir}}", "{{.ProjectID}}:{{.Channel}}"},
		Requires:    []string{"{{.BundleDir}}"},
	}
	if opts.SkipUnchanged {
		s.Guard = bundle.NewUnchangedGuard()
	}
	return s
}

// Toolchain lists the executables the stage sets invoke, with the arguments
// that make each print its version.
func Toolchain(tools types.Tools) []invoke.Tool {
	return []invoke.Tool{
		{Name: "cargo", Path: tools.Cargo, VersionArgs: []string{"--version"}},
		{Name: "bevy", Path: tools.Bevy, VersionArgs: []string{"--version"}},
		{Name: "butler", Path: tools.Butler, VersionArgs: []string{"version"}},
	}
}
