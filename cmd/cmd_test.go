package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/initializ/shipyard/config"
	"github.com/initializ/shipyard/invoke"
)

type cliRun struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command with a scripted invoker and a fake
// environment, restoring package state afterwards.
func runCLI(t *testing.T, inv invoke.Invoker, env map[string]string, args ...string) cliRun {
	t.Helper()

	cfgFile, workDir, verbose, outputFormat = "", "", false, "text"
	dryRun, themeOverride, showProgress, skipUnchanged = false, "", false, false

	oldInv, oldEnv, oldUser := newInvoker, lookupEnv, userConfigFile
	newInvoker = func() invoke.Invoker { return inv }
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	userConfigFile = filepath.Join(t.TempDir(), "no-user-config.yaml")
	t.Cleanup(func() { newInvoker, lookupEnv, userConfigFile = oldInv, oldEnv, oldUser })

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.ExecuteContext(context.Background())
	return cliRun{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func exitCodeOf(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if err != nil {
		return 1
	}
	return 0
}

func bundleEffect(c invoke.Command) error {
	dir := filepath.Join(c.Dir, "target", "bevy_web", "web", "my_favorite_nightmare")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "index.html"), []byte("<canvas id=game>"), 0644)
}

func TestWasmDeploy_MissingProjectID(t *testing.T) {
	inv := invoke.NewScripted()
	res := runCLI(t, inv, nil, "wasm-deploy", "-C", t.TempDir())

	if got := exitCodeOf(res.err); got != 2 {
		t.Errorf("exit = %d, want 2 (err: %v)", got, res.err)
	}
	if n := len(inv.Calls()); n != 0 {
		t.Errorf("invocations = %d, want 0", n)
	}
	if !strings.Contains(res.stdout, `MissingConfig{key="ITCH_IO_PROJECT_ID"}`) {
		t.Errorf("report missing MissingConfig:\n%s", res.stdout)
	}
}

func TestWasmBuildThenDeploy(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{config.EnvProjectID: "abc123"}
	inv := invoke.NewScripted().On("bevy", invoke.Reply{Effect: bundleEffect})

	if res := runCLI(t, inv, env, "wasm-build", "-C", dir); res.err != nil {
		t.Fatalf("wasm-build: %v\n%s", res.err, res.stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "target", "bevy_web", "web", "my_favorite_nightmare")); err != nil {
		t.Fatalf("bundle missing: %v", err)
	}

	res := runCLI(t, inv, env, "wasm-deploy", "-C", dir)
	if res.err != nil {
		t.Fatalf("wasm-deploy: %v\n%s", res.err, res.stdout)
	}

	calls := inv.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	got := calls[1].String()
	if got != "butler push target/bevy_web/web/my_favorite_nightmare abc123:wasm" {
		t.Errorf("publish command = %q", got)
	}
}

func TestWasmDeploy_NoBundleIsSkipped(t *testing.T) {
	inv := invoke.NewScripted()
	res := runCLI(t, inv, map[string]string{config.EnvProjectID: "abc123"}, "wasm-deploy", "-C", t.TempDir())

	if got := exitCodeOf(res.err); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
	if len(inv.Calls()) != 0 {
		t.Error("butler should not be invoked")
	}
	if !strings.Contains(res.stdout, "Skipped{MissingPrecondition}") {
		t.Errorf("report:\n%s", res.stdout)
	}
}

func TestWasmCheck_CompilerFailure(t *testing.T) {
	inv := invoke.NewScripted().On("cargo", invoke.Reply{Result: invoke.Result{
		ExitCode: 101,
		Stderr:   "error[E0599]: no method named `request_animation_frame`\nerror: could not compile `my_favorite_nightmare`\n",
	}})
	res := runCLI(t, inv, nil, "wasm-check", "-C", t.TempDir())

	if got := exitCodeOf(res.err); got != 1 {
		t.Errorf("exit = %d, want 1", got)
	}
	for _, want := range []string{"Failure{ToolExitNonZero}", "could not compile"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("report missing %q:\n%s", want, res.stdout)
		}
	}
	if !strings.Contains(res.stderr, `"level":"error"`) || !strings.Contains(res.stderr, `"set":"wasm-check"`) {
		t.Errorf("expected an error log entry, got:\n%s", res.stderr)
	}
}

func TestDev_ToolNotFound(t *testing.T) {
	inv := invoke.NewScripted().On("bevy", invoke.Reply{Err: &invoke.ToolNotFoundError{Tool: "bevy"}})
	res := runCLI(t, inv, nil, "dev", "-C", t.TempDir())

	if got := exitCodeOf(res.err); got != 3 {
		t.Errorf("exit = %d, want 3", got)
	}
	if !strings.Contains(res.stdout, "Failure{ToolNotFound}") {
		t.Errorf("report:\n%s", res.stdout)
	}
}

func TestDryRun(t *testing.T) {
	inv := invoke.NewScripted()
	res := runCLI(t, inv, nil, "wasm-check", "--dry-run", "-C", t.TempDir())

	if res.err != nil {
		t.Fatalf("err = %v", res.err)
	}
	if len(inv.Calls()) != 0 {
		t.Error("dry run should not invoke tools")
	}
	if !strings.Contains(res.stdout, "$ cargo check --target wasm32-unknown-unknown") {
		t.Errorf("report:\n%s", res.stdout)
	}
}

func TestOutputJSON(t *testing.T) {
	res := runCLI(t, invoke.NewScripted(), nil, "wasm-check", "--output", "json", "-C", t.TempDir())
	if res.err != nil {
		t.Fatalf("err = %v", res.err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, res.stdout)
	}
	if doc["set"] != "wasm-check" || doc["outcome"] != "Success" || doc["exit_code"] != float64(0) {
		t.Errorf("doc = %v", doc)
	}
}

func TestInvalidOutputFlag(t *testing.T) {
	inv := invoke.NewScripted()
	res := runCLI(t, inv, nil, "wasm-check", "--output", "yaml", "-C", t.TempDir())
	if res.err == nil || !strings.Contains(res.err.Error(), "invalid --output") {
		t.Errorf("err = %v", res.err)
	}
	if len(inv.Calls()) != 0 {
		t.Error("no tool should run with invalid flags")
	}
}

func TestProjectFileOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shipyard.yaml"), []byte("commands:\n  wasm-check: cargo clippy --target wasm32-unknown-unknown\n"), 0644); err != nil {
		t.Fatal(err)
	}
	inv := invoke.NewScripted()
	if res := runCLI(t, inv, nil, "wasm-check", "-C", dir); res.err != nil {
		t.Fatalf("err = %v\n%s", res.err, res.stdout)
	}
	calls := inv.Calls()
	if len(calls) != 1 || calls[0].Args[0] != "clippy" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestInvalidProjectFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shipyard.yaml"), []byte("tail_lines: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	inv := invoke.NewScripted()
	res := runCLI(t, inv, nil, "wasm-check", "-C", dir)
	if got := exitCodeOf(res.err); got != 2 {
		t.Errorf("exit = %d, want 2", got)
	}
	if len(inv.Calls()) != 0 {
		t.Error("no tool should run with invalid config")
	}
}

func TestUnreadableConfigExitsTwo(t *testing.T) {
	tests := []struct {
		name    string
		project string
		args    []string
	}{
		{"malformed yaml", "crate: [\n", nil},
		{"missing --config", "", []string{"--config", "nope.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.project != "" {
				if err := os.WriteFile(filepath.Join(dir, "shipyard.yaml"), []byte(tt.project), 0644); err != nil {
					t.Fatal(err)
				}
			}
			inv := invoke.NewScripted()
			res := runCLI(t, inv, nil, append([]string{"wasm-check", "-C", dir}, tt.args...)...)

			if got := exitCodeOf(res.err); got != 2 {
				t.Errorf("exit = %d, want 2\n%s", got, res.stdout)
			}
			if len(inv.Calls()) != 0 {
				t.Error("no tool should run with unreadable config")
			}
		})
	}
}

func TestProjectIDIgnoredWhenNotPublishing(t *testing.T) {
	env := map[string]string{config.EnvProjectID: "abc:123"}

	for _, set := range []string{"dev", "wasm-check"} {
		t.Run(set, func(t *testing.T) {
			inv := invoke.NewScripted()
			res := runCLI(t, inv, env, set, "-C", t.TempDir())
			if res.err != nil {
				t.Fatalf("err = %v\n%s", res.err, res.stdout)
			}
			if len(inv.Calls()) != 1 {
				t.Errorf("calls = %d, want 1", len(inv.Calls()))
			}
		})
	}

	inv := invoke.NewScripted()
	res := runCLI(t, inv, env, "wasm-deploy", "-C", t.TempDir())
	if got := exitCodeOf(res.err); got != 2 {
		t.Errorf("wasm-deploy exit = %d, want 2", got)
	}
	if len(inv.Calls()) != 0 {
		t.Error("butler should not run with an unusable project id")
	}
}

func TestStagesCommand(t *testing.T) {
	res := runCLI(t, invoke.NewScripted(), map[string]string{config.EnvProjectID: "abc123"}, "stages", "-C", t.TempDir())
	if res.err != nil {
		t.Fatalf("err = %v", res.err)
	}
	for _, want := range []string{
		"wasm-release",
		"bevy build --yes --release web --bundle",
		"butler push target/bevy_web/web/my_favorite_nightmare abc123:wasm",
		"needs ITCH_IO_PROJECT_ID",
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stages output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestStagesCommand_JSONWithoutProjectID(t *testing.T) {
	res := runCLI(t, invoke.NewScripted(), nil, "stages", "--output", "json", "-C", t.TempDir())
	if res.err != nil {
		t.Fatalf("err = %v", res.err)
	}
	var sets []setListing
	if err := json.Unmarshal([]byte(res.stdout), &sets); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(sets) != 5 {
		t.Fatalf("sets = %d, want 5", len(sets))
	}
	if !strings.Contains(res.stdout, "$ITCH_IO_PROJECT_ID:wasm") {
		t.Errorf("expected placeholder project id:\n%s", res.stdout)
	}
}

func TestDoctor(t *testing.T) {
	inv := invoke.NewScripted().
		On("cargo", invoke.Reply{Result: invoke.Result{Stdout: "cargo 1.82.0 (8f40fc59f 2024-08-21)\n"}}).
		On("bevy", invoke.Reply{Result: invoke.Result{Stdout: "bevy 0.1.0-dev\n"}}).
		On("butler", invoke.Reply{Err: &invoke.ToolNotFoundError{Tool: "butler"}})

	res := runCLI(t, inv, nil, "doctor", "-C", t.TempDir())
	if got := exitCodeOf(res.err); got != 3 {
		t.Errorf("exit = %d, want 3", got)
	}
	for _, want := range []string{"cargo 1.82.0", "not found: butler", "ITCH_IO_PROJECT_ID is not set"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("doctor output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc1234")
	t.Cleanup(func() { SetVersionInfo("dev", "none") })

	res := runCLI(t, invoke.NewScripted(), nil, "version")
	if strings.TrimSpace(res.stdout) != "shipyard 1.2.3 (commit: abc1234)" {
		t.Errorf("version = %q", res.stdout)
	}
}

func TestExitStatus(t *testing.T) {
	var stderr bytes.Buffer
	if got := exitStatus(nil, &stderr); got != 0 {
		t.Errorf("nil = %d", got)
	}
	if got := exitStatus(&ExitError{Code: 3}, &stderr); got != 3 {
		t.Errorf("ExitError = %d", got)
	}
	if stderr.Len() != 0 {
		t.Errorf("ExitError should not print, got %q", stderr.String())
	}
	if got := exitStatus(errors.New("unknown command"), &stderr); got != 1 {
		t.Errorf("plain error = %d", got)
	}
	if !strings.Contains(stderr.String(), "Error: unknown command") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
