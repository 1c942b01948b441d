// Package pipeline provides a sequential stage-based build pipeline whose
// stages wrap external tools.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/initializ/shipyard/types"
)

// State is the lifecycle position of a Run.
type State string

const (
	StatePending   State = "Pending"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateHalted    State = "Halted"
)

// Run records one invocation of a stage set.
type Run struct {
	ID       string        `json:"id"`
	Set      string        `json:"set"`
	State    State         `json:"state"`
	Index    int           `json:"index"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Results  []StageResult `json:"results"`

	// Err is set when the run halted outside any stage, such as a
	// configuration failure before dispatch or a cancellation between stages.
	Err error `json:"-"`
}

func newRun(set string) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Set:     set,
		State:   StatePending,
		Started: time.Now(),
	}
}

// Aborted returns a halted Run for a stage set that failed before any stage
// was dispatched.
func Aborted(set string, err error) *Run {
	r := newRun(set)
	r.State = StateHalted
	r.Err = err
	r.Finished = r.Started
	return r
}

// Outcome summarizes the run: Failure if it halted or any stage failed,
// Skipped if any stage was skipped, Success otherwise.
func (r *Run) Outcome() Outcome {
	if r.State == StateHalted || r.Err != nil {
		return Failure
	}
	out := Success
	for _, res := range r.Results {
		switch res.Outcome {
		case Failure:
			return Failure
		case Skipped:
			out = Skipped
		}
	}
	return out
}

// Last returns the most recent stage result, or nil.
func (r *Run) Last() *StageResult {
	if len(r.Results) == 0 {
		return nil
	}
	return &r.Results[len(r.Results)-1]
}

// Skipped returns the results of every skipped stage.
func (r *Run) Skipped() []StageResult {
	var out []StageResult
	for _, res := range r.Results {
		if res.Outcome == Skipped {
			out = append(out, res)
		}
	}
	return out
}

// Observer is told about stage transitions as they happen.
type Observer interface {
	StageStarted(run *Run, index int, stage Stage)
	StageFinished(run *Run, index int, result StageResult)
}

// Pipeline executes a named, ordered stage set one stage at a time.
type Pipeline struct {
	name      string
	stages    []Stage
	runner    *Runner
	observers []Observer
}

// New creates a Pipeline for the named stage set.
func New(name string, runner *Runner, stages ...Stage) *Pipeline {
	return &Pipeline{name: name, stages: stages, runner: runner}
}

// Name returns the stage set name.
func (p *Pipeline) Name() string { return p.name }

// Stages returns the stages in dispatch order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Observe registers an observer for subsequent runs.
func (p *Pipeline) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// Run executes each stage sequentially. A Failure halts the run before the
// next stage is dispatched; a Skipped stage is recorded and the run
// continues.
func (p *Pipeline) Run(ctx context.Context, cfg *types.Configuration) *Run {
	run := newRun(p.name)
	defer func() { run.Finished = time.Now() }()

	for i, s := range p.stages {
		run.Index = i
		if err := ctx.Err(); err != nil {
			run.State = StateHalted
			run.Err = fmt.Errorf("pipeline cancelled before stage %s: %w", s.Name, err)
			res := StageResult{Stage: s.Name, Outcome: Failure, Reason: ReasonInterrupted, Detail: "cancelled before dispatch"}
			run.Results = append(run.Results, res)
			for _, o := range p.observers {
				o.StageFinished(run, i, res)
			}
			return run
		}

		run.State = StateRunning
		for _, o := range p.observers {
			o.StageStarted(run, i, s)
		}

		res := p.runner.Run(ctx, s, cfg)
		run.Results = append(run.Results, res)

		for _, o := range p.observers {
			o.StageFinished(run, i, res)
		}

		if res.Outcome == Failure {
			run.State = StateHalted
			return run
		}
	}

	run.State = StateCompleted
	return run
}
