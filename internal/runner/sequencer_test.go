package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploykit/entrypoint/internal/config"
	"github.com/deploykit/entrypoint/internal/model"
)

// fakeResult is the scripted outcome for one command in fakeRunner.
type fakeResult struct {
	code int
	err  error
}

// fakeRunner records every Spec it receives and returns scripted results
// keyed by the command's first argv element. Unknown commands succeed.
type fakeRunner struct {
	calls   []Spec
	results map[string]fakeResult
}

func (f *fakeRunner) Run(_ context.Context, spec Spec) (int, error) {
	f.calls = append(f.calls, spec)
	if result, ok := f.results[spec.Argv[0]]; ok {
		return result.code, result.err
	}
	return 0, nil
}

// step builds a minimal config.Step for sequencer tests.
func step(name string, argv ...string) config.Step {
	return config.Step{Name: name, Command: argv}
}

// TestSequencer_AllOK verifies that a clean run executes every step in
// declaration order and reports StatusOK.
func TestSequencer_AllOK(t *testing.T) {
	fake := &fakeRunner{}
	seq := NewSequencer(fake)

	steps := []config.Step{
		step("migrate", "migrate-tool"),
		step("collectstatic", "collect-tool"),
		step("create-admin", "admin-tool"),
	}

	report, err := seq.Run(context.Background(), steps, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, report.Status)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Steps, 3)
	for _, result := range report.Steps {
		assert.Equal(t, model.StatusOK, result.Status)
	}

	// Strict ordering: the runner saw the commands in declaration order.
	require.Len(t, fake.calls, 3)
	assert.Equal(t, "migrate-tool", fake.calls[0].Argv[0])
	assert.Equal(t, "collect-tool", fake.calls[1].Argv[0])
	assert.Equal(t, "admin-tool", fake.calls[2].Argv[0])
}

// TestSequencer_ShortCircuit verifies that the first failing step aborts
// the rest of the run: later steps are never invoked and are reported as
// skipped, and the returned error carries the failed command's exit code.
func TestSequencer_ShortCircuit(t *testing.T) {
	fake := &fakeRunner{results: map[string]fakeResult{
		"collect-tool": {code: 2, err: errors.New("collect-tool exited with code 2")},
	}}
	seq := NewSequencer(fake)

	steps := []config.Step{
		step("migrate", "migrate-tool"),
		step("collectstatic", "collect-tool"),
		step("create-admin", "admin-tool"),
		step("warm-cache", "cache-tool"),
	}

	report, err := seq.Run(context.Background(), steps, nil)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	// The process inherits the failing command's own exit code.
	assert.Equal(t, model.ExitCode(2), cliErr.Code)

	assert.Equal(t, model.StatusFailed, report.Status)
	require.Len(t, report.Steps, 4)
	assert.Equal(t, model.StatusOK, report.Steps[0].Status)
	assert.Equal(t, model.StatusFailed, report.Steps[1].Status)
	assert.Equal(t, model.StatusSkipped, report.Steps[2].Status)
	assert.Equal(t, model.StatusSkipped, report.Steps[3].Status)
	assert.Contains(t, report.Steps[2].Error, "collectstatic")

	// Steps after the failure were never invoked.
	require.Len(t, fake.calls, 2)

	failed := report.Failed()
	require.NotNil(t, failed)
	assert.Equal(t, "collectstatic", failed.Name)
}

// TestSequencer_AllowFailure verifies that a failing allow_failure step
// logs as allowed-failure and the run continues cleanly.
func TestSequencer_AllowFailure(t *testing.T) {
	fake := &fakeRunner{results: map[string]fakeResult{
		"admin-tool": {code: 1, err: errors.New("admin-tool exited with code 1: username already taken")},
	}}
	seq := NewSequencer(fake)

	steps := []config.Step{
		step("migrate", "migrate-tool"),
		{Name: "create-admin", Command: []string{"admin-tool"}, AllowFailure: true},
		step("warm-cache", "cache-tool"),
	}

	report, err := seq.Run(context.Background(), steps, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, report.Status)
	require.Len(t, report.Steps, 3)
	assert.Equal(t, model.StatusAllowedFailure, report.Steps[1].Status)
	assert.Equal(t, 1, report.Steps[1].ExitCode)
	assert.Contains(t, report.Steps[1].Error, "already taken")

	// All three steps ran, including the one after the allowed failure.
	assert.Len(t, fake.calls, 3)
}

// TestSequencer_Skip verifies that skipped steps are recorded with their
// reason and never invoked.
func TestSequencer_Skip(t *testing.T) {
	fake := &fakeRunner{}
	seq := NewSequencer(fake)

	steps := []config.Step{
		step("migrate", "migrate-tool"),
		step("create-admin", "admin-tool"),
	}
	skip := map[string]string{"create-admin": "ADMIN_USERNAME not set"}

	report, err := seq.Run(context.Background(), steps, skip)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, report.Status)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, model.StatusSkipped, report.Steps[1].Status)
	assert.Equal(t, "ADMIN_USERNAME not set", report.Steps[1].Error)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "migrate-tool", fake.calls[0].Argv[0])
}

// TestSequencer_SpecPropagation verifies that step env, dir and timeout
// reach the runner unchanged — the password mapping for admin provisioning
// depends on this.
func TestSequencer_SpecPropagation(t *testing.T) {
	fake := &fakeRunner{}
	seq := NewSequencer(fake)

	steps := []config.Step{
		{
			Name:    "create-admin",
			Command: []string{"admin-tool", "--noinput"},
			Env:     map[string]string{"DJANGO_SUPERUSER_PASSWORD": "hunter2"},
			Dir:     "/srv/app",
		},
	}

	_, err := seq.Run(context.Background(), steps, nil)
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, []string{"admin-tool", "--noinput"}, call.Argv)
	assert.Equal(t, "/srv/app", call.Dir)
	assert.Equal(t, "hunter2", call.Env["DJANGO_SUPERUSER_PASSWORD"])
	// The password travels via env, never argv.
	assert.False(t, strings.Contains(strings.Join(call.Argv, " "), "hunter2"))
}

// TestSequencer_StartFailureMapsToStepFailed verifies that a step failing
// without an exit code (command never started) maps to ExitStepFailed
// rather than a nonsensical negative exit code.
func TestSequencer_StartFailureMapsToStepFailed(t *testing.T) {
	fake := &fakeRunner{results: map[string]fakeResult{
		"missing-tool": {code: -1, err: errors.New("starting missing-tool: executable file not found in $PATH")},
	}}
	seq := NewSequencer(fake)

	_, err := seq.Run(context.Background(), []config.Step{step("migrate", "missing-tool")}, nil)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitStepFailed, cliErr.Code)
}
