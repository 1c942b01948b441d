package cmd

import (
	"context"
	"fmt"

	"github.com/initializ/shipyard/config"
	"github.com/initializ/shipyard/invoke"
	"github.com/initializ/shipyard/report"
	"github.com/initializ/shipyard/stages"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that cargo, bevy, and butler can be run",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(config.Options{
		WorkDir:     workDir,
		ProjectFile: cfgFile,
		UserFile:    userConfigFile,
		LookupEnv:   lookupEnv,
	})
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	statuses := invoke.Probe(ctx, newInvoker(), stages.Toolchain(cfg.Tools))

	out := cmd.OutOrStdout()
	s := styleSetFor(out)
	missing := 0
	for _, st := range statuses {
		switch {
		case !st.Found:
			missing++
			fmt.Fprintf(out, "  %s %s %s\n", s.ErrorTxt.Render("✗"), s.SummaryKey.Render(st.Tool.Name), s.ErrorTxt.Render("not found: "+st.Tool.Path))
		case st.Err != nil:
			fmt.Fprintf(out, "  %s %s %s\n", s.WarningTxt.Render("!"), s.SummaryKey.Render(st.Tool.Name), s.WarningTxt.Render(st.Err.Error()))
		default:
			fmt.Fprintf(out, "  %s %s %s\n", s.SuccessTxt.Render("✓"), s.SummaryKey.Render(st.Tool.Name), s.DimTxt.Render(st.Version))
		}
	}

	if cfg.ProjectID == "" {
		fmt.Fprintf(out, "  %s %s %s\n", s.WarningTxt.Render("!"), s.SummaryKey.Render("itch.io"), s.WarningTxt.Render(config.EnvProjectID+" is not set; wasm-deploy will fail"))
	}

	if missing > 0 {
		return &ExitError{Code: report.ExitToolNotFound}
	}
	return nil
}
