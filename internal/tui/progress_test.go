package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/initializ/shipyard/pipeline"
)

func newTestProgress() Progress {
	return NewProgress("wasm-release", []pipeline.Stage{
		{Name: "wasm-bundle", Description: "bevy web release bundle"},
		{Name: "wasm-publish"},
	}, PlainStyleSet())
}

func update(t *testing.T, p Progress, msg tea.Msg) (Progress, tea.Cmd) {
	t.Helper()
	m, cmd := p.Update(msg)
	next, ok := m.(Progress)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return next, cmd
}

func TestProgress_Transitions(t *testing.T) {
	p := newTestProgress()
	if p.Rows[0].Status != StagePending || p.Rows[1].Status != StagePending {
		t.Fatal("rows should start pending")
	}

	p, _ = update(t, p, StageStartedMsg{Index: 0})
	if p.Rows[0].Status != StageRunning {
		t.Errorf("row 0 = %v, want running", p.Rows[0].Status)
	}

	p, _ = update(t, p, StageFinishedMsg{Index: 0, Result: pipeline.StageResult{
		Stage: "wasm-bundle", Outcome: pipeline.Success, Duration: 1500 * time.Millisecond,
	}})
	if p.Rows[0].Status != StageDone || p.Rows[0].Elapsed != "1.5s" {
		t.Errorf("row 0 = %+v", p.Rows[0])
	}

	p, _ = update(t, p, StageFinishedMsg{Index: 1, Result: pipeline.StageResult{
		Stage: "wasm-publish", Outcome: pipeline.Skipped, Reason: pipeline.ReasonMissingPrecondition,
	}})
	if p.Rows[1].Status != StageSkipped || p.Rows[1].Label != "Skipped{MissingPrecondition}" {
		t.Errorf("row 1 = %+v", p.Rows[1])
	}

	// Out-of-range indexes are ignored.
	p, _ = update(t, p, StageStartedMsg{Index: 7})

	p, cmd := update(t, p, RunDoneMsg{})
	if !p.Done() || cmd == nil {
		t.Error("RunDoneMsg should finish the program")
	}
}

func TestProgress_View(t *testing.T) {
	p := newTestProgress()
	p, _ = update(t, p, StageFinishedMsg{Index: 0, Result: pipeline.StageResult{
		Outcome: pipeline.Failure, Reason: pipeline.ReasonToolExitNonZero,
	}})

	view := p.View()
	for _, want := range []string{"wasm-release", "✗ wasm-bundle", "Failure{ToolExitNonZero}", "· wasm-publish"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}
