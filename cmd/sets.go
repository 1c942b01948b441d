package cmd

import (
	"context"
	"fmt"

	"github.com/initializ/shipyard/config"
	"github.com/initializ/shipyard/internal/tui"
	"github.com/initializ/shipyard/logging"
	"github.com/initializ/shipyard/pipeline"
	"github.com/initializ/shipyard/report"
	"github.com/initializ/shipyard/stages"
	"github.com/initializ/shipyard/types"
	"github.com/spf13/cobra"
)

var skipUnchanged bool

// setCommands builds one subcommand per stage set.
func setCommands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, set := range stages.Sets(stages.Options{}) {
		name := set.Name
		c := &cobra.Command{
			Use:   name,
			Short: set.Description,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSet(cmd, name)
			},
		}
		if publishes(set) {
			c.Flags().BoolVar(&skipUnchanged, "skip-unchanged", false, "skip the push when the bundle matches the last one published to this channel")
		}
		cmds = append(cmds, c)
	}
	return cmds
}

func publishes(set stages.Set) bool {
	for _, s := range set.Stages {
		if s.Name == stages.StageWasmPublish {
			return true
		}
	}
	return false
}

func interactive(set stages.Set) bool {
	for _, s := range set.Stages {
		if s.Interactive {
			return true
		}
	}
	return false
}

func runSet(cmd *cobra.Command, name string) error {
	logger := logging.With(logging.NewJSONLogger(cmd.ErrOrStderr(), verbose), map[string]any{"set": name})

	set, err := stages.Lookup(name, stages.Options{SkipUnchanged: skipUnchanged})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var run *pipeline.Run
	cfg, err := config.Resolve(config.Options{
		WorkDir:     workDir,
		ProjectFile: cfgFile,
		UserFile:    userConfigFile,
		Required:    set.Required,
		LookupEnv:   lookupEnv,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("configuration failed", map[string]any{"error": err.Error()})
		run = pipeline.Aborted(name, err)
	} else {
		run = execute(ctx, cmd, set, cfg, logger)
	}

	if err := writeReport(cmd, run); err != nil {
		return err
	}
	if code := report.ExitCode(run); code != report.ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}

func execute(ctx context.Context, cmd *cobra.Command, set stages.Set, cfg *types.Configuration, logger logging.Logger) *pipeline.Run {
	runner := pipeline.NewRunner(newInvoker(), logger)
	runner.DryRun = dryRun
	runner.Stdin, runner.Stdout, runner.Stderr = cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()

	p := set.Pipeline(runner)

	var progress *tui.Observer
	if showProgress && outputFormat == "text" && !interactive(set) && isTerminal(cmd.ErrOrStderr()) {
		progress = tui.StartProgress(cmd.ErrOrStderr(), tui.NewProgress(set.Name, p.Stages(), styleSetFor(cmd.ErrOrStderr())))
		p.Observe(progress)
	}

	logger.Debug("running stage set", map[string]any{"set": set.Name, "stages": len(p.Stages()), "dry_run": dryRun})
	run := p.Run(ctx, cfg)

	if progress != nil {
		if err := progress.Finish(); err != nil {
			logger.Warn("progress display failed", map[string]any{"error": err.Error()})
		}
	}
	return run
}

func writeReport(cmd *cobra.Command, run *pipeline.Run) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return report.WriteJSON(out, run, dryRun)
	}
	text := report.Text{Styles: styleSetFor(out), Verbose: verbose}
	if err := text.Write(out, run); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
