package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Spec describes one external command invocation.
type Spec struct {
	// Argv is the command line, executable first. Resolved via PATH.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds additional environment variables layered over the
	// inherited process environment. Keys already present in the process
	// environment are overridden.
	Env map[string]string

	// Timeout bounds the command's runtime. Zero means no limit.
	Timeout time.Duration
}

// Runner executes a command to completion and reports its exit code.
// The returned error is nil exactly when the command exited 0. A code of
// -1 means the command never produced an exit code (could not start, or
// was killed before exiting normally).
type Runner interface {
	Run(ctx context.Context, spec Spec) (int, error)
}

// stderrTailLimit bounds how much trailing stderr is kept for error
// messages. Full output still streams to the container log.
const stderrTailLimit = 4096

// ExecRunner runs commands via os/exec with output streaming to the
// configured writers (the process's own stdout/stderr by default).
type ExecRunner struct {
	// Stdout and Stderr receive the command's output. Tests can point
	// these elsewhere; production runs stream to the container log.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates an ExecRunner wired to the process's own
// stdout/stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the command described by spec and blocks until it exits.
//
// Stdin is never attached: every invoked tool must run in its
// non-interactive mode, and a tool that tries to prompt reads EOF instead
// of hanging the boot. On failure, the error message includes the trailing
// stderr output so the container log's last lines and the error agree.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (int, error) {
	if len(spec.Argv) == 0 {
		return -1, errors.New("empty command")
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	// #nosec G204 — argv comes from the validated boot manifest, not
	// from request input.
	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = MergeEnv(os.Environ(), spec.Env)
	cmd.Stdin = nil

	tail := newTailWriter(stderrTailLimit)
	cmd.Stdout = r.Stdout
	cmd.Stderr = io.MultiWriter(r.Stderr, tail)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	name := spec.Argv[0]

	// Timeout and cancellation take priority in the message: the tool was
	// killed, so its own exit status is noise.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && spec.Timeout > 0 {
			return -1, fmt.Errorf("%s timed out after %s", name, spec.Timeout)
		}
		return -1, fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		message := fmt.Sprintf("%s exited with code %d", name, code)
		if tailStr := strings.TrimSpace(tail.String()); tailStr != "" {
			message = fmt.Sprintf("%s: %s", message, lastLine(tailStr))
		}
		return code, errors.New(message)
	}

	// The command never started (binary missing, permission denied, …).
	return -1, fmt.Errorf("starting %s: %w", name, err)
}

// MergeEnv layers overrides onto a base environment in "KEY=VALUE" form.
// Keys present in overrides replace base entries rather than producing
// duplicates, since getenv semantics for duplicated keys are undefined
// across platforms.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	merged := make([]string, 0, len(base)+len(overrides))
	replaced := make(map[string]bool, len(overrides))
	for _, entry := range base {
		key, _, ok := strings.Cut(entry, "=")
		if ok {
			if value, override := overrides[key]; override {
				merged = append(merged, key+"="+value)
				replaced[key] = true
				continue
			}
		}
		merged = append(merged, entry)
	}
	for key, value := range overrides {
		if !replaced[key] {
			merged = append(merged, key+"="+value)
		}
	}
	return merged
}

// lastLine returns the final non-empty line of s — the part of a stderr
// tail most likely to contain the actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// tailWriter is an io.Writer that keeps only the last `limit` bytes
// written to it. Used to retain the end of a command's stderr without
// buffering unbounded output in memory.
type tailWriter struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailWriter(limit int) *tailWriter {
	return &tailWriter{limit: limit}
}

// Write appends p, discarding the oldest bytes once the limit is exceeded.
// Always reports full success so the MultiWriter never aborts the stream.
func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	if len(w.buf) > w.limit {
		w.buf = w.buf[len(w.buf)-w.limit:]
	}
	return len(p), nil
}

// String returns the retained tail.
func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
