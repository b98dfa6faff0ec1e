package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/deploykit/entrypoint/internal/config"
	"github.com/deploykit/entrypoint/internal/model"
	"github.com/deploykit/entrypoint/internal/probe"
)

// readyWaitTimeout bounds how long child mode waits for the server to
// start accepting connections before logging a warning. The child keeps
// running either way — readiness here is informational, the orchestrator's
// own health checks are authoritative.
const readyWaitTimeout = 60 * time.Second

// ExecHandoff replaces the current process with the server via execve(2).
//
// On success this function never returns: the server takes over the PID,
// inherited environment (plus serve.Env overrides) and file descriptors,
// exactly like `exec gunicorn …` at the end of a shell entrypoint. An
// error return always means the handoff failed.
func ExecHandoff(serve config.Serve) error {
	path, err := exec.LookPath(serve.Command[0])
	if err != nil {
		return model.WrapCLIError(model.ExitHandoffFailed,
			fmt.Sprintf("server binary %q not found", serve.Command[0]), err)
	}

	// execve has no working-directory parameter, so the chdir happens in
	// this process right before the image is replaced.
	if serve.Dir != "" {
		if chErr := os.Chdir(serve.Dir); chErr != nil {
			return model.WrapCLIError(model.ExitHandoffFailed,
				fmt.Sprintf("changing to server directory %s", serve.Dir), chErr)
		}
	}

	slog.Info("handing off to server",
		"command", strings.Join(serve.Command, " "), "bind", serve.Bind)

	if err := syscall.Exec(path, serve.Command, MergeEnv(os.Environ(), serve.Env)); err != nil {
		return model.WrapCLIError(model.ExitHandoffFailed,
			fmt.Sprintf("exec %s", path), err)
	}
	return nil // unreachable
}

// Supervise runs the server as a child process instead of replacing the
// entrypoint: the entrypoint stays resident, forwards SIGINT/SIGTERM to
// the child, and returns the child's exit code once it terminates. A
// server killed by a signal has no exit code of its own; it is reported
// as 128+signum per the shell convention, so a forwarded `docker stop`
// SIGTERM surfaces as 143.
//
// A background dialer waits for serve.Bind to accept TCP connections and
// logs when the server is up, replacing the guesswork of tailing logs to
// see whether the bind succeeded.
func Supervise(ctx context.Context, serve config.Serve) (int, error) {
	// #nosec G204 — argv comes from the validated boot manifest.
	cmd := exec.Command(serve.Command[0], serve.Command[1:]...)
	cmd.Dir = serve.Dir
	cmd.Env = MergeEnv(os.Environ(), serve.Env)
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return -1, model.WrapCLIError(model.ExitHandoffFailed,
			fmt.Sprintf("starting server %s", serve.Command[0]), err)
	}
	slog.Info("server started", "pid", cmd.Process.Pid,
		"command", strings.Join(serve.Command, " "), "bind", serve.Bind)

	// Forward termination signals so `docker stop` and orchestrator
	// shutdowns reach the server even though it is not PID 1.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-signals:
				slog.Info("forwarding signal to server", "signal", sig.String())
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	if serve.Bind != "" {
		go func() {
			waitCtx, cancel := context.WithTimeout(ctx, readyWaitTimeout)
			defer cancel()
			if err := probe.WaitListening(waitCtx, serve.Bind); err != nil {
				slog.Warn("server not accepting connections yet", "bind", serve.Bind, "error", err.Error())
				return
			}
			slog.Info("server accepting connections", "bind", serve.Bind)
		}()
	}

	err := cmd.Wait()
	close(done)

	code := cmd.ProcessState.ExitCode()
	if err != nil {
		// ExitCode is -1 for a signal death; translate to 128+signum so
		// the process reports a meaningful status instead of 255.
		if code == -1 {
			if status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				code = 128 + int(status.Signal())
			} else {
				code = int(model.ExitHandoffFailed)
			}
		}
		slog.Error("server exited", "exit_code", code, "error", err.Error())
		return code, nil
	}
	slog.Info("server exited cleanly")
	return 0, nil
}
