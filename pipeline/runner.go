package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/initializ/shipyard/invoke"
	"github.com/initializ/shipyard/logging"
	"github.com/initializ/shipyard/types"
)

// Runner executes a single stage: precondition checks, one tool invocation,
// and postcondition checks. It never retries.
type Runner struct {
	Invoker invoke.Invoker
	Logger  logging.Logger

	// DryRun renders commands and checks preconditions without invoking.
	DryRun bool

	// Terminal streams handed to interactive stages.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	now func() time.Time
}

// NewRunner creates a Runner around inv.
func NewRunner(inv invoke.Invoker, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{Invoker: inv, Logger: logger, now: time.Now}
}

// Run executes stage once and reports what happened. It does not return an
// error: every failure mode is encoded in the StageResult.
func (r *Runner) Run(ctx context.Context, stage Stage, cfg *types.Configuration) StageResult {
	now := r.now
	if now == nil {
		now = time.Now
	}
	start := now()
	res := r.run(ctx, stage, cfg)
	if res.Duration == 0 {
		res = res.withDuration(now().Sub(start))
	}

	fields := map[string]any{
		"stage":       res.Stage,
		"outcome":     res.Label(),
		"exit_code":   res.ExitCode,
		"duration_ms": res.DurationMs,
	}
	switch res.Outcome {
	case Failure:
		fields["detail"] = res.Detail
		r.Logger.Error("stage failed", fields)
	case Skipped:
		fields["detail"] = res.Detail
		r.Logger.Warn("stage skipped", fields)
	default:
		r.Logger.Debug("stage finished", fields)
	}
	return res
}

func (r *Runner) run(ctx context.Context, stage Stage, cfg *types.Configuration) StageResult {
	tail := cfg.TailLines
	res := StageResult{Stage: stage.Name}

	inv, err := stage.Render(cfg)
	if err != nil {
		res.Outcome, res.Reason, res.Detail = Failure, ReasonLaunchError, err.Error()
		return res
	}
	cmd := invoke.Command{
		Path: inv.Argv[0],
		Args: inv.Argv[1:],
		Dir:  inv.Dir,
		Env:  inv.Env,
	}
	res.Command = cmd.String()

	absent, err := missing(inv.Requires)
	if err != nil {
		res.Outcome, res.Reason, res.Detail = Failure, ReasonLaunchError, err.Error()
		return res
	}
	if len(absent) > 0 {
		res.Outcome, res.Reason = Skipped, ReasonMissingPrecondition
		res.Detail = "required artifact missing: " + strings.Join(absent, ", ")
		return res
	}

	var decision Decision
	if stage.Guard != nil {
		decision, err = stage.Guard.Check(cfg)
		if err != nil {
			res.Outcome, res.Reason, res.Detail = Failure, ReasonGuardFailed, err.Error()
			return res
		}
		if decision.Skip {
			res.Outcome, res.Reason, res.Detail = Skipped, ReasonUnchanged, decision.Reason
			return res
		}
	}

	if r.DryRun {
		res.Outcome, res.Detail = Success, "dry run: not invoked"
		return res
	}

	if stage.Interactive {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = r.Stdin, r.Stdout, r.Stderr
	}

	r.Logger.Debug("invoking tool", map[string]any{"stage": stage.Name, "command": res.Command, "dir": cmd.Dir})
	out, err := r.Invoker.Invoke(ctx, cmd)
	if err != nil {
		var notFound *invoke.ToolNotFoundError
		res.Outcome, res.Detail = Failure, err.Error()
		res.Reason = ReasonLaunchError
		if errors.As(err, &notFound) {
			res.Reason = ReasonToolNotFound
		}
		return res
	}

	res.ExitCode = out.ExitCode
	res.StdoutTail = invoke.Tail(out.Stdout, tail)
	res.StderrTail = invoke.Tail(out.Stderr, tail)
	res = res.withDuration(out.Duration)

	switch {
	case out.Interrupted:
		res.Outcome, res.Reason = Failure, ReasonInterrupted
		res.Detail = "interrupted; partial output left in place"
		return res
	case out.ExitCode != 0:
		res.Outcome, res.Reason = Failure, ReasonToolExitNonZero
		res.Detail = fmt.Sprintf("%s exited with status %d", inv.Argv[0], out.ExitCode)
		return res
	}

	absent, err = missing(inv.Produces)
	if err != nil {
		res.Outcome, res.Reason, res.Detail = Failure, ReasonPostconditionViolated, err.Error()
		return res
	}
	if len(absent) > 0 {
		res.Outcome, res.Reason = Failure, ReasonPostconditionViolated
		res.Detail = fmt.Sprintf("%s exited 0 but did not produce: %s", inv.Argv[0], strings.Join(absent, ", "))
		return res
	}

	res.Outcome = Success
	if stage.Guard != nil {
		if err := stage.Guard.Done(cfg, decision); err != nil {
			res.Detail = "guard not updated: " + err.Error()
			r.Logger.Warn("guard update failed", map[string]any{"stage": stage.Name, "error": err.Error()})
		}
	}
	return res
}
