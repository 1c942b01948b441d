package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/initializ/shipyard/invoke"
	"github.com/initializ/shipyard/types"
)

func testConfig(t *testing.T) *types.Configuration {
	t.Helper()
	return &types.Configuration{
		ProjectID:    "abc123",
		WorkDir:      t.TempDir(),
		OutputRoot:   types.DefaultOutputRoot,
		TargetTriple: types.DefaultTargetTriple,
		Crate:        types.DefaultCrate,
		BundleDir:    types.DefaultBundleDir(types.DefaultOutputRoot, types.DefaultCrate),
		Channel:      types.DefaultChannel,
		TailLines:    3,
		Tools:        types.DefaultTools(),
	}
}

// mkdirEffect creates dir (relative to the command's working directory) the
// way a real bundler would.
func mkdirEffect(rel string) func(invoke.Command) error {
	return func(c invoke.Command) error {
		return os.MkdirAll(filepath.Join(c.Dir, rel), 0755)
	}
}

var (
	bundleStage = Stage{
		Name:     "wasm-bundle",
		Command:  []string{"{{.Tools.Bevy}}", "build", "--yes", "--release", "web", "--bundle"},
		Produces: []string{"{{.BundleDir}}"},
	}
	publishStage = Stage{
		Name:     "wasm-publish",
		Command:  []string{"{{.Tools.Butler}}", "push", "{{.BundleDir}}", "{{.ProjectID}}:{{.Channel}}"},
		Requires: []string{"{{.BundleDir}}"},
	}
	checkStage = Stage{
		Name:    "wasm-check",
		Command: []string{"{{.Tools.Cargo}}", "check", "--target", "{{.TargetTriple}}"},
	}
)
