package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StepStatus represents the outcome of a single bootstrap step.
// A run moves each step through exactly one of these terminal states:
//
//	ok              — the command exited 0
//	failed          — the command exited non-zero (or could not start)
//	allowed-failure — the command failed but the step is marked allow_failure
//	skipped         — the step was never invoked (explicit skip, or an
//	                  earlier step failed and aborted the run)
type StepStatus string

const (
	// StatusOK indicates the step's command completed with exit code 0.
	StatusOK StepStatus = "ok"

	// StatusFailed indicates the step's command exited non-zero or could
	// not be started at all. A failed step aborts the remaining sequence.
	StatusFailed StepStatus = "failed"

	// StatusAllowedFailure indicates the command failed but the step is
	// declared allow_failure, so the sequence continued. This is the
	// expected outcome for admin provisioning against an account that
	// already exists.
	StatusAllowedFailure StepStatus = "allowed-failure"

	// StatusSkipped indicates the step was never invoked — either the user
	// skipped it explicitly, its inputs were absent, or an earlier step
	// failed and short-circuited the run.
	StatusSkipped StepStatus = "skipped"
)

// String returns the string representation of StepStatus.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands and logging.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid checks whether the StepStatus value is one of the
// predefined valid states.
func (s StepStatus) IsValid() bool {
	switch s {
	case StatusOK, StatusFailed, StatusAllowedFailure, StatusSkipped:
		return true
	default:
		return false
	}
}

// ServeMode controls how the final serve step takes over from the sequencer.
//
//	exec  — the bootstrap process is replaced by the server via execve(2);
//	        the server becomes PID-identical to the entrypoint.
//	child — the server runs as a supervised child process; the entrypoint
//	        stays resident, forwards termination signals, and exits with
//	        the child's exit code.
type ServeMode string

const (
	// ModeExec replaces the bootstrap process image with the server.
	// This is the default, matching the classic `exec gunicorn …` idiom.
	ModeExec ServeMode = "exec"

	// ModeChild runs the server as a supervised child process with
	// signal forwarding and a post-start readiness wait.
	ModeChild ServeMode = "child"
)

// String returns the string representation of ServeMode.
func (m ServeMode) String() string {
	return string(m)
}

// IsValid checks whether the ServeMode value is one of the
// predefined valid modes.
func (m ServeMode) IsValid() bool {
	switch m {
	case ModeExec, ModeChild:
		return true
	default:
		return false
	}
}

// ParseServeMode converts a string to a ServeMode.
// Returns an error if the string does not match any valid mode.
func ParseServeMode(s string) (ServeMode, error) {
	mode := ServeMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid serve mode: %q (valid: exec, child)", s)
	}
	return mode, nil
}

// StepResult is the terminal record of a single step within a bootstrap run.
// ExitCode is the invoked command's own exit code; it is 0 for skipped steps
// and -1 when the command could not be started at all.
type StepResult struct {
	// Name is the step's unique identifier within the sequence.
	Name string `json:"name"`

	// Status is the terminal state the step reached.
	Status StepStatus `json:"status"`

	// ExitCode is the exit code of the invoked command.
	ExitCode int `json:"exitCode"`

	// DurationMs is the wall-clock duration of the command in milliseconds.
	// Zero for skipped steps.
	DurationMs int64 `json:"durationMs"`

	// Error holds the failure detail for failed / allowed-failure steps,
	// or the skip reason for skipped steps.
	Error string `json:"error,omitempty"`
}

// SequenceReport is the aggregate result of one bootstrap run. It is the
// machine-readable record printed before the serve handoff: once the server
// replaces the process there is nothing left to report from.
type SequenceReport struct {
	// RunID uniquely identifies this bootstrap run in logs and output.
	RunID string `json:"runId"`

	// Status is StatusOK if every step ended ok / allowed-failure / skipped,
	// StatusFailed otherwise.
	Status StepStatus `json:"status"`

	// Steps holds the per-step results in execution order.
	Steps []StepResult `json:"steps"`

	// StartedAt and FinishedAt bound the sequence (not the serve handoff).
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Failed returns the first step that ended in StatusFailed, or nil.
func (r *SequenceReport) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// Duration is a time.Duration that (un)marshals as a human-readable string
// ("30s", "5m") in both YAML and JSON boot manifests.
//
// yaml.v3 and encoding/json decode durations as plain integers (nanoseconds),
// which is useless in a hand-written manifest, so this wrapper parses the
// time.ParseDuration format instead.
type Duration time.Duration

// Std returns the wrapped value as a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the time.Duration string form ("1m30s").
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML decodes a YAML scalar like "5m" or "90s".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalJSON decodes a JSON string like "5m" or "90s".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON encodes the duration as its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// stepNameRegex validates step names: alphanumeric + hyphens only,
// must start and end with alphanumeric.
var stepNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateStepName checks if the given name is a valid bootstrap step name.
// Valid names contain only alphanumeric characters and hyphens,
// and must start/end with an alphanumeric character.
func ValidateStepName(name string) error {
	if name == "" {
		return fmt.Errorf("step name must not be empty")
	}
	if !stepNameRegex.MatchString(name) {
		return fmt.Errorf("invalid step name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// ExitCode defines standard CLI exit codes. These codes allow container
// orchestrators and CI systems to programmatically determine the outcome
// of a bootstrap attempt.
//
// Note that a failed step's own exit code takes precedence over ExitStepFailed:
// the process inherits whatever the first failing command signalled, so the
// constants below only cover failures originating in the entrypoint itself.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the environment or boot manifest could not
	// be loaded or failed validation.
	ExitConfigError ExitCode = 2

	// ExitProbeFailed indicates a preflight probe (binary lookup, database
	// reachability, bind address availability) did not pass.
	ExitProbeFailed ExitCode = 3

	// ExitStepFailed indicates a bootstrap step failed without a usable
	// exit code of its own (e.g., the command could not be started).
	ExitStepFailed ExitCode = 4

	// ExitHandoffFailed indicates the serve step could not take over the
	// process (exec failed or the supervised child never started).
	ExitHandoffFailed ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
