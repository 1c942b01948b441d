package pipeline

import (
	"fmt"
	"time"
)

// Outcome classifies a finished stage or run.
type Outcome string

const (
	Success Outcome = "Success"
	Failure Outcome = "Failure"
	Skipped Outcome = "Skipped"
)

// Reason qualifies a Failure or Skipped outcome.
type Reason string

const (
	ReasonToolExitNonZero       Reason = "ToolExitNonZero"
	ReasonPostconditionViolated Reason = "PostconditionViolated"
	ReasonMissingPrecondition   Reason = "MissingPrecondition"
	ReasonToolNotFound          Reason = "ToolNotFound"
	ReasonLaunchError           Reason = "LaunchError"
	ReasonInterrupted           Reason = "Interrupted"
	ReasonUnchanged             Reason = "Unchanged"
	ReasonGuardFailed           Reason = "GuardFailed"
)

// StageResult is the immutable record of one stage execution.
type StageResult struct {
	Stage      string        `json:"stage"`
	Command    string        `json:"command,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Reason     Reason        `json:"reason,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"duration_ms"`
	StdoutTail string        `json:"stdout_tail,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
}

// Label renders the outcome with its reason, e.g. "Failure{ToolExitNonZero}".
func (r StageResult) Label() string {
	if r.Reason == "" {
		return string(r.Outcome)
	}
	return fmt.Sprintf("%s{%s}", r.Outcome, r.Reason)
}

func (r StageResult) withDuration(d time.Duration) StageResult {
	r.Duration = d
	r.DurationMs = d.Milliseconds()
	return r
}
