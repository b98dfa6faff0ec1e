package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deploykit/entrypoint/internal/model"
	"github.com/deploykit/entrypoint/internal/probe"
)

// TestFormatStepResult verifies the report table rows for each terminal
// step state.
func TestFormatStepResult(t *testing.T) {
	tests := []struct {
		name string
		step model.StepResult
		want string
	}{
		{
			name: "ok step",
			step: model.StepResult{Name: "migrate", Status: model.StatusOK, DurationMs: 1240},
			want: "  migrate            ok                 1240ms",
		},
		{
			name: "allowed failure carries detail",
			step: model.StepResult{
				Name:       "create-admin",
				Status:     model.StatusAllowedFailure,
				ExitCode:   1,
				DurationMs: 95,
				Error:      "createsuperuser exited with code 1",
			},
			want: "  create-admin       allowed-failure      95ms  createsuperuser exited with code 1",
		},
		{
			name: "skipped step shows reason instead of duration",
			step: model.StepResult{
				Name:   "collectstatic",
				Status: model.StatusSkipped,
				Error:  `not run: step "migrate" failed`,
			},
			want: `  collectstatic      skipped          not run: step "migrate" failed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatStepResult(tt.step))
		})
	}
}

// TestFormatProbeResult verifies the check table rows.
func TestFormatProbeResult(t *testing.T) {
	ok := probe.Result{Name: "binary:python", OK: true, LatencyMs: 1}
	assert.Equal(t, "binary:python                ok            1ms  ", FormatProbeResult(ok))

	failed := probe.Result{Name: "database", OK: false, LatencyMs: 30041, Error: "not reachable after 30s"}
	assert.Equal(t, "database                     failed    30041ms  not reachable after 30s", FormatProbeResult(failed))
}

// TestFormatFailures verifies the single-line probe failure summary used
// in error messages.
func TestFormatFailures(t *testing.T) {
	failed := []probe.Result{
		{Name: "binary:gunicorn", Error: "not found"},
		{Name: "database", Error: "not reachable after 30s"},
	}
	assert.Equal(t, "binary:gunicorn (not found), database (not reachable after 30s)", formatFailures(failed))
}
