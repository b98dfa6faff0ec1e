// Package cli — up.go implements the "entrypoint up" command.
//
// up is the container entrypoint operation: it runs the whole bootstrap
// sequence and then hands the process over to the application server.
//
// Orchestration steps:
//  1. Load environment and resolve the boot manifest
//  2. Compute skips (explicit --skip flags, absent admin credentials)
//  3. Preflight probes (binaries, database reachability, bind address)
//  4. Run the step sequence, short-circuiting on first failure
//  5. Print the sequence report (text or JSON)
//  6. Hand off to the server: exec by default, supervised child on demand
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploykit/entrypoint/internal/config"
	"github.com/deploykit/entrypoint/internal/model"
	"github.com/deploykit/entrypoint/internal/probe"
	"github.com/deploykit/entrypoint/internal/runner"
)

// upFlags holds the flag values for the up command.
type upFlags struct {
	noServe     bool     // --no-serve: run the steps but skip the server handoff
	noPreflight bool     // --no-preflight: skip probes (degraded environments)
	child       bool     // --child: supervise the server instead of exec
	skip        []string // --skip: step names to leave out of this run
}

// NewUpCommand creates the "up" cobra command.
func NewUpCommand() *cobra.Command {
	flags := &upFlags{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Run the bootstrap sequence and start the application server",
		Long: `Run the bootstrap steps in order, then hand off to the server.

The first failing step aborts the run: later steps are reported as skipped
and the process exits with the failed command's own exit code. Steps marked
allow_failure (such as admin provisioning against an existing account) log
a warning and the run continues.

Examples:
  entrypoint up
  entrypoint up --no-serve
  entrypoint up --skip collectstatic
  entrypoint up --child`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noServe, "no-serve", false, "Run bootstrap steps only, don't start the server")
	cmd.Flags().BoolVar(&flags.noPreflight, "no-preflight", false, "Skip preflight probes")
	cmd.Flags().BoolVar(&flags.child, "child", false, "Run the server as a supervised child instead of exec")
	cmd.Flags().StringArrayVar(&flags.skip, "skip", nil, "Step name to skip (repeatable)")

	return cmd
}

// runUp is the main orchestration function for the up command.
func runUp(ctx context.Context, flags *upFlags) error {
	e, m, err := resolveConfig()
	if err != nil {
		return err
	}

	skip, err := buildSkips(m, e, flags.skip)
	if err != nil {
		return err
	}

	if !flags.noPreflight {
		results := probe.NewPreflight().Run(ctx, e, m, skip)
		if !probe.AllOK(results) {
			return model.NewCLIError(model.ExitProbeFailed,
				"preflight failed: "+formatFailures(probe.Failures(results)))
		}
	}

	seq := runner.NewSequencer(runner.NewExecRunner())
	report, runErr := seq.Run(ctx, m.Steps, skip)

	// The report is printed in both outcomes: on failure it is the
	// machine-readable record of how far the boot got.
	printReport(report)
	if runErr != nil {
		return runErr
	}

	if flags.noServe || len(m.Serve.Command) == 0 {
		return nil
	}

	mode := m.Serve.Mode
	if flags.child {
		mode = model.ModeChild
	}

	if mode == model.ModeChild {
		code, supErr := runner.Supervise(ctx, m.Serve)
		if supErr != nil {
			return supErr
		}
		if code != 0 {
			return model.NewCLIError(model.ExitCode(code),
				fmt.Sprintf("server exited with code %d", code))
		}
		return nil
	}

	// Exec handoff: on success this never returns.
	return runner.ExecHandoff(m.Serve)
}

// buildSkips merges the automatic skips (absent admin credentials on the
// built-in manifest) with the user's --skip flags, rejecting names that
// are not part of the sequence.
func buildSkips(m *config.Manifest, e *config.Env, requested []string) (map[string]string, error) {
	skip := config.AutoSkips(m, e)
	for _, name := range requested {
		if m.Step(name) == nil {
			return nil, model.NewCLIError(model.ExitConfigError,
				fmt.Sprintf("cannot skip unknown step %q", name))
		}
		skip[name] = "skipped via --skip"
	}
	return skip, nil
}

// formatFailures renders failed probes as a single line for error output.
func formatFailures(failed []probe.Result) string {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.Name, r.Error))
	}
	return joinComma(parts)
}
