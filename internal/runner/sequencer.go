package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deploykit/entrypoint/internal/config"
	"github.com/deploykit/entrypoint/internal/model"
)

// Sequencer runs a boot sequence: each step must complete before the next
// starts, and the first failing step that is not allow_failure aborts the
// rest of the run.
type Sequencer struct {
	runner Runner
}

// NewSequencer creates a Sequencer that executes steps with the given
// Runner.
func NewSequencer(r Runner) *Sequencer {
	return &Sequencer{runner: r}
}

// Run executes the steps strictly in order and returns the per-step report.
//
// skip maps step names to a human-readable reason; skipped steps are
// recorded in the report but never invoked. When a step fails, the
// remaining steps are reported as skipped and the returned error is a
// CLIError whose code mirrors the failing command's own exit code, so the
// process inherits the exit status of whichever command failed first.
// Steps that failed without producing an exit code map to ExitStepFailed.
//
// err == nil guarantees report.Status == StatusOK.
func (s *Sequencer) Run(ctx context.Context, steps []config.Step, skip map[string]string) (*model.SequenceReport, error) {
	report := &model.SequenceReport{
		RunID:     uuid.NewString(),
		Status:    model.StatusOK,
		StartedAt: time.Now(),
	}

	logger := slog.With("run_id", report.RunID)
	logger.Info("bootstrap sequence started", "steps", len(steps))

	var failed *model.StepResult
	for _, step := range steps {
		// Short-circuit: once a step has failed, nothing else runs.
		if failed != nil {
			report.Steps = append(report.Steps, model.StepResult{
				Name:   step.Name,
				Status: model.StatusSkipped,
				Error:  fmt.Sprintf("not run: step %q failed", failed.Name),
			})
			continue
		}

		if reason, ok := skip[step.Name]; ok {
			logger.Info("step skipped", "step", step.Name, "reason", reason)
			report.Steps = append(report.Steps, model.StepResult{
				Name:   step.Name,
				Status: model.StatusSkipped,
				Error:  reason,
			})
			continue
		}

		logger.Info("step started", "step", step.Name, "command", strings.Join(step.Command, " "))
		start := time.Now()
		code, err := s.runner.Run(ctx, Spec{
			Argv:    step.Command,
			Dir:     step.Dir,
			Env:     step.Env,
			Timeout: step.Timeout.Std(),
		})
		result := model.StepResult{
			Name:       step.Name,
			ExitCode:   code,
			DurationMs: time.Since(start).Milliseconds(),
		}

		switch {
		case err == nil:
			result.Status = model.StatusOK
			logger.Info("step ok", "step", step.Name, "duration_ms", result.DurationMs)
		case step.AllowFailure:
			result.Status = model.StatusAllowedFailure
			result.Error = err.Error()
			logger.Warn("step failed, continuing (allow_failure)",
				"step", step.Name, "exit_code", code, "error", err.Error())
		default:
			result.Status = model.StatusFailed
			result.Error = err.Error()
			logger.Error("step failed, aborting sequence",
				"step", step.Name, "exit_code", code, "error", err.Error())
		}

		report.Steps = append(report.Steps, result)
		if result.Status == model.StatusFailed {
			failed = &report.Steps[len(report.Steps)-1]
		}
	}

	report.FinishedAt = time.Now()

	if failed != nil {
		report.Status = model.StatusFailed
		code := model.ExitCode(failed.ExitCode)
		if failed.ExitCode <= 0 {
			code = model.ExitStepFailed
		}
		return report, model.WrapCLIError(code,
			fmt.Sprintf("bootstrap step %q failed", failed.Name), errors.New(failed.Error))
	}

	logger.Info("bootstrap sequence completed", "steps", len(report.Steps))
	return report, nil
}
