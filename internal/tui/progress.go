package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/initializ/shipyard/pipeline"
)

// StageStatus is the display state of one stage row.
type StageStatus int

const (
	StagePending StageStatus = iota
	StageRunning
	StageDone
	StageSkipped
	StageFailed
)

// StageRow is one line of the progress display.
type StageRow struct {
	Name        string
	Description string
	Status      StageStatus
	Label       string
	Elapsed     string
}

// StageStartedMsg marks a stage as dispatched.
type StageStartedMsg struct{ Index int }

// StageFinishedMsg carries a finished stage's result.
type StageFinishedMsg struct {
	Index  int
	Result pipeline.StageResult
}

// RunDoneMsg ends the progress program.
type RunDoneMsg struct{}

// Progress shows a stage set's stages with a spinner on the running one.
type Progress struct {
	Set  string
	Rows []StageRow

	spinner spinner.Model
	styles  *StyleSet
	done    bool
}

// NewProgress creates a progress display for the given stages.
func NewProgress(set string, stages []pipeline.Stage, styles *StyleSet) Progress {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Theme.Accent)

	rows := make([]StageRow, len(stages))
	for i, s := range stages {
		rows[i] = StageRow{Name: s.Name, Description: s.Description}
	}
	return Progress{Set: set, Rows: rows, spinner: sp, styles: styles}
}

// Init starts the spinner.
func (p Progress) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update handles messages.
func (p Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	case StageStartedMsg:
		if p.valid(msg.Index) {
			p.Rows[msg.Index].Status = StageRunning
		}
		return p, nil
	case StageFinishedMsg:
		if p.valid(msg.Index) {
			row := &p.Rows[msg.Index]
			row.Label = msg.Result.Label()
			row.Elapsed = msg.Result.Duration.Round(10 * time.Millisecond).String()
			switch msg.Result.Outcome {
			case pipeline.Success:
				row.Status = StageDone
			case pipeline.Skipped:
				row.Status = StageSkipped
			default:
				row.Status = StageFailed
			}
		}
		return p, nil
	case RunDoneMsg:
		p.done = true
		return p, tea.Quit
	}
	return p, nil
}

func (p Progress) valid(i int) bool { return i >= 0 && i < len(p.Rows) }

// View renders the stage list.
func (p Progress) View() string {
	var b strings.Builder
	b.WriteString(p.styles.Title.Render(p.Set))
	b.WriteString("\n")

	for _, row := range p.Rows {
		var icon string
		nameStyle := p.styles.PrimaryTxt
		switch row.Status {
		case StagePending:
			icon = p.styles.DimTxt.Render("·")
			nameStyle = p.styles.DimTxt
		case StageRunning:
			icon = p.spinner.View()
		case StageDone:
			icon = p.styles.SuccessTxt.Render("✓")
		case StageSkipped:
			icon = p.styles.WarningTxt.Render("-")
		case StageFailed:
			icon = p.styles.ErrorTxt.Render("✗")
			nameStyle = p.styles.ErrorTxt
		}

		line := fmt.Sprintf("  %s %s", icon, nameStyle.Render(row.Name))
		if row.Description != "" {
			line += " " + p.styles.DimTxt.Render(row.Description)
		}
		if row.Label != "" && row.Status != StageDone {
			line += " " + p.styles.SecondaryTxt.Render(row.Label)
		}
		if row.Elapsed != "" {
			line += " " + p.styles.DimTxt.Render(row.Elapsed)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Done reports whether the run has ended.
func (p Progress) Done() bool { return p.done }

// Observer forwards pipeline transitions to a running Progress program.
type Observer struct {
	program *tea.Program
	exited  chan error
}

// StartProgress runs a Progress program writing to out until Finish is
// called. The program never reads the terminal, so interrupt signals reach
// the process unchanged.
func StartProgress(out io.Writer, model Progress) *Observer {
	o := &Observer{
		program: tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()),
		exited:  make(chan error, 1),
	}
	go func() {
		_, err := o.program.Run()
		o.exited <- err
	}()
	return o
}

func (o *Observer) StageStarted(_ *pipeline.Run, index int, _ pipeline.Stage) {
	o.program.Send(StageStartedMsg{Index: index})
}

func (o *Observer) StageFinished(_ *pipeline.Run, index int, result pipeline.StageResult) {
	o.program.Send(StageFinishedMsg{Index: index, Result: result})
}

// Finish renders the final frame and waits for the program to exit.
func (o *Observer) Finish() error {
	o.program.Send(RunDoneMsg{})
	return <-o.exited
}
