// Package report renders a pipeline Run for people and for machines, and
// maps it to a process exit code.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/initializ/shipyard/config"
	"github.com/initializ/shipyard/internal/tui"
	"github.com/initializ/shipyard/invoke"
	"github.com/initializ/shipyard/pipeline"
)

// Process exit codes.
const (
	ExitSuccess       = 0
	ExitFailure       = 1
	ExitMissingConfig = 2
	ExitToolNotFound  = 3
)

// ExitCode maps a finished run to the process exit status. Configuration
// errors win over everything else, then a missing tool, then any failed or
// skipped stage.
func ExitCode(run *pipeline.Run) int {
	var missing *config.MissingConfigError
	var invalid *config.InvalidConfigError
	var notFound *invoke.ToolNotFoundError
	switch {
	case errors.As(run.Err, &missing), errors.As(run.Err, &invalid):
		return ExitMissingConfig
	case errors.As(run.Err, &notFound):
		return ExitToolNotFound
	}
	for _, res := range run.Results {
		if res.Reason == pipeline.ReasonToolNotFound {
			return ExitToolNotFound
		}
	}
	if run.Outcome() != pipeline.Success {
		return ExitFailure
	}
	return ExitSuccess
}

// Document is the JSON form of a run.
type Document struct {
	ID         string                 `json:"id"`
	Set        string                 `json:"set"`
	State      pipeline.State         `json:"state"`
	Outcome    pipeline.Outcome       `json:"outcome"`
	ExitCode   int                    `json:"exit_code"`
	Error      string                 `json:"error,omitempty"`
	DryRun     bool                   `json:"dry_run,omitempty"`
	Started    time.Time              `json:"started"`
	DurationMs int64                  `json:"duration_ms"`
	Stages     []pipeline.StageResult `json:"stages"`
}

// NewDocument builds the JSON document for run.
func NewDocument(run *pipeline.Run, dryRun bool) Document {
	doc := Document{
		ID:         run.ID,
		Set:        run.Set,
		State:      run.State,
		Outcome:    run.Outcome(),
		ExitCode:   ExitCode(run),
		DryRun:     dryRun,
		Started:    run.Started,
		DurationMs: run.Finished.Sub(run.Started).Milliseconds(),
		Stages:     run.Results,
	}
	if run.Err != nil {
		doc.Error = run.Err.Error()
	}
	if doc.Stages == nil {
		doc.Stages = []pipeline.StageResult{}
	}
	return doc
}

// WriteJSON writes the run as one indented JSON document.
func WriteJSON(w io.Writer, run *pipeline.Run, dryRun bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(run, dryRun)); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// Text renders runs as styled text.
type Text struct {
	Styles *tui.StyleSet

	// Verbose includes output tails for successful stages too.
	Verbose bool
}

// Write renders run to w.
func (t Text) Write(w io.Writer, run *pipeline.Run) error {
	_, err := io.WriteString(w, t.Render(run))
	return err
}

// Render returns the text report for run.
func (t Text) Render(run *pipeline.Run) string {
	s := t.Styles
	if s == nil {
		s = tui.PlainStyleSet()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.Title.Render(run.Set), s.DimTxt.Render("run "+shortID(run.ID)))

	for _, res := range run.Results {
		icon, style := s.SuccessTxt.Render("✓"), s.PrimaryTxt
		switch res.Outcome {
		case pipeline.Skipped:
			icon, style = s.WarningTxt.Render("-"), s.WarningTxt
		case pipeline.Failure:
			icon, style = s.ErrorTxt.Render("✗"), s.ErrorTxt
		}

		line := fmt.Sprintf("  %s %s %s", icon, style.Render(res.Stage), style.Render(res.Label()))
		if res.Duration > 0 {
			line += " " + s.DimTxt.Render(res.Duration.Round(time.Millisecond).String())
		}
		b.WriteString(line + "\n")

		if res.Command != "" {
			b.WriteString("    " + s.DimTxt.Render("$ "+res.Command) + "\n")
		}
		if res.Detail != "" {
			b.WriteString("    " + s.SecondaryTxt.Render(res.Detail) + "\n")
		}
		if res.Outcome == pipeline.Failure || t.Verbose {
			writeTail(&b, s, "stdout", res.StdoutTail)
			writeTail(&b, s, "stderr", res.StderrTail)
		}
	}

	if run.Err != nil {
		b.WriteString(s.SummaryKey.Render("error") + s.ErrorTxt.Render(run.Err.Error()) + "\n")
	}

	outcome := run.Outcome()
	style := s.SuccessTxt
	switch outcome {
	case pipeline.Failure:
		style = s.ErrorTxt
	case pipeline.Skipped:
		style = s.WarningTxt
	}
	b.WriteString(s.SummaryKey.Render("result") + style.Bold(true).Render(string(outcome)))
	b.WriteString(s.DimTxt.Render(fmt.Sprintf(" (exit %d)", ExitCode(run))) + "\n")
	return b.String()
}

func writeTail(b *strings.Builder, s *tui.StyleSet, name, tail string) {
	tail = strings.TrimRight(tail, "\n")
	if tail == "" {
		return
	}
	b.WriteString("    " + s.DimTxt.Render(name+" (last lines):") + "\n")
	for _, line := range strings.Split(s.TailBox.Render(tail), "\n") {
		b.WriteString("    " + line + "\n")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
