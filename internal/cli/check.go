// Package cli — check.go implements the "entrypoint check" command.
//
// check runs the preflight probes without executing any bootstrap step:
// it validates the environment and manifest, resolves every binary the
// sequence would invoke, waits for the database, and verifies the bind
// address is free. Deployments use it as a dry run before rolling out a
// new image, and as a container health gate in CI.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploykit/entrypoint/internal/model"
	"github.com/deploykit/entrypoint/internal/probe"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	var skip []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight probes without executing any bootstrap step",
		Long: `Validate the environment and boot manifest, then run the preflight
probes: binary lookup for every step command, database reachability
(DATABASE_URL or DB_WAIT_ADDR), and bind address availability.

Exits 0 when everything passes, 3 when any probe fails.

Examples:
  entrypoint check
  entrypoint check --json
  entrypoint check --skip create-admin`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), skip)
		},
	}

	cmd.Flags().StringArrayVar(&skip, "skip", nil, "Step name to exclude from probing (repeatable)")

	return cmd
}

func runCheck(ctx context.Context, skipNames []string) error {
	e, m, err := resolveConfig()
	if err != nil {
		return err
	}

	skip, err := buildSkips(m, e, skipNames)
	if err != nil {
		return err
	}

	results := probe.NewPreflight().Run(ctx, e, m, skip)
	printProbeResults(results)

	if !probe.AllOK(results) {
		return model.NewCLIError(model.ExitProbeFailed,
			"preflight failed: "+formatFailures(probe.Failures(results)))
	}
	return nil
}

// printProbeResults renders probe outcomes to stdout in the format
// selected by the --json flag.
func printProbeResults(results []probe.Result) {
	if jsonOutput {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			fmt.Printf("Error formatting JSON: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("%-28s %-8s %8s  %s\n", "PROBE", "STATUS", "LATENCY", "DETAIL")
	for _, r := range results {
		fmt.Println(FormatProbeResult(r))
	}
}

// FormatProbeResult renders a single probe result as a table row.
func FormatProbeResult(r probe.Result) string {
	status := "ok"
	if !r.OK {
		status = "failed"
	}
	return fmt.Sprintf("%-28s %-8s %6dms  %s", r.Name, status, r.LatencyMs, r.Error)
}
