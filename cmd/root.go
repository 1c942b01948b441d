// Package cmd implements the shipyard CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/initializ/shipyard/internal/tui"
	"github.com/initializ/shipyard/invoke"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgFile       string
	workDir       string
	verbose       bool
	outputFormat  string
	dryRun        bool
	themeOverride string
	showProgress  bool

	appVersion = "dev"
	appCommit  = "none"
)

// Replaced in tests.
var (
	newInvoker     = func() invoke.Invoker { return invoke.NewOSInvoker() }
	lookupEnv      = os.LookupEnv
	userConfigFile string
)

var rootCmd = &cobra.Command{
	Use:   "shipyard",
	Short: "Build, check, and publish a Bevy game",
	Long: "Shipyard runs the native dev build, compiles the WebAssembly bundle, " +
		"and pushes it to itch.io, one external tool per stage.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "text", "json":
			return nil
		}
		return fmt.Errorf("invalid --output %q: want text or json", outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "project config file (default: shipyard.yaml in the working directory, if present)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "application checkout to run in (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs and show output tails for every stage")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "text", "report format: text or json")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "render commands and check preconditions without running tools")
	rootCmd.PersistentFlags().StringVar(&themeOverride, "theme", "", "color theme: dark, light, or auto")
	rootCmd.PersistentFlags().BoolVar(&showProgress, "progress", false, "show live stage progress when stderr is a terminal")

	for _, c := range setCommands() {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("shipyard %s (commit: %s)\n", version, commit))
}

// Execute runs the root command and exits with its status. SIGINT and
// SIGTERM cancel the running stage.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitStatus(err, rootCmd.ErrOrStderr()))
}

// ExitError carries a process exit status out of a command. The command has
// already reported the reason.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "Error: %s\n", err)
	return 1
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func styleSetFor(w io.Writer) *tui.StyleSet {
	if !isTerminal(w) {
		return tui.PlainStyleSet()
	}
	return tui.NewStyleSet(tui.DetectTheme(themeOverride))
}
