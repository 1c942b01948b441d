package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/initializ/shipyard/config"
	"github.com/initializ/shipyard/invoke"
	"github.com/initializ/shipyard/stages"
	"github.com/initializ/shipyard/types"
	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List stage sets and the commands they run",
	Args:  cobra.NoArgs,
	RunE:  runStages,
}

type stageListing struct {
	Name     string   `json:"name"`
	Command  string   `json:"command"`
	Requires []string `json:"requires,omitempty"`
	Produces []string `json:"produces,omitempty"`
}

type setListing struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Required    []string       `json:"required_config,omitempty"`
	Stages      []stageListing `json:"stages"`
}

func runStages(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(config.Options{
		WorkDir:     workDir,
		ProjectFile: cfgFile,
		UserFile:    userConfigFile,
		LookupEnv:   lookupEnv,
	})
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}
	if cfg.ProjectID == "" {
		placeholder := *cfg
		placeholder.ProjectID = "$" + config.EnvProjectID
		cfg = &placeholder
	}

	listings, err := listSets(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	}

	s := styleSetFor(out)
	for _, set := range listings {
		fmt.Fprintf(out, "%s %s\n", s.Title.Render(set.Name), s.SecondaryTxt.Render(set.Description))
		if len(set.Required) > 0 {
			fmt.Fprintf(out, "  %s %s\n", s.DimTxt.Render("needs"), strings.Join(set.Required, ", "))
		}
		for _, st := range set.Stages {
			fmt.Fprintf(out, "  %s %s\n", s.AccentTxt.Render(st.Name), s.DimTxt.Render("$ "+st.Command))
		}
	}
	return nil
}

func listSets(cfg *types.Configuration) ([]setListing, error) {
	var listings []setListing
	for _, set := range stages.Sets(stages.Options{}) {
		l := setListing{Name: set.Name, Description: set.Description, Required: set.Required}
		for _, st := range set.Stages {
			inv, err := st.Render(cfg)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", st.Name, err)
			}
			l.Stages = append(l.Stages, stageListing{
				Name:     st.Name,
				Command:  invoke.Command{Path: inv.Argv[0], Args: inv.Argv[1:]}.String(),
				Requires: inv.Requires,
				Produces: inv.Produces,
			})
		}
		listings = append(listings, l)
	}
	return listings, nil
}
