// Package cli — plan.go implements the "entrypoint plan" command.
//
// plan prints the fully resolved boot sequence — manifest source, step
// commands after template rendering and defaulting, skips, and the serve
// handoff — without running anything. It answers "what would this
// container do on start?" during image review.
package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploykit/entrypoint/internal/config"
	"github.com/deploykit/entrypoint/internal/model"
)

// NewPlanCommand creates the "plan" cobra command.
func NewPlanCommand() *cobra.Command {
	var skip []string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved bootstrap sequence without running it",
		Long: `Resolve the environment and boot manifest, then print the sequence
that "up" would execute: every step's command line after template
rendering, skip decisions, and the serve handoff.

Secrets never appear in the output: step environment variables are listed
by name only.

Examples:
  entrypoint plan
  entrypoint plan --json
  entrypoint plan --config deploy/bootstrap.yaml`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(skip)
		},
	}

	cmd.Flags().StringArrayVar(&skip, "skip", nil, "Step name to mark skipped in the plan (repeatable)")

	return cmd
}

func runPlan(skipNames []string) error {
	e, m, err := resolveConfig()
	if err != nil {
		return err
	}

	skip, err := buildSkips(m, e, skipNames)
	if err != nil {
		return err
	}

	plan := BuildPlan(m, skip)

	if jsonOutput {
		data, marshalErr := json.MarshalIndent(plan, "", "  ")
		if marshalErr != nil {
			return model.WrapCLIError(model.ExitGeneralError, "formatting plan", marshalErr)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Boot manifest: %s\n\n", plan.Source)
	for i, step := range plan.Steps {
		fmt.Printf("%d. %s\n", i+1, FormatPlanStep(step))
	}
	if len(plan.Serve.Command) > 0 {
		fmt.Printf("%d. serve: %s  (mode: %s, bind: %s)\n",
			len(plan.Steps)+1, strings.Join(plan.Serve.Command, " "), plan.Serve.Mode, plan.Serve.Bind)
	}
	return nil
}

// Plan is the printable view of a resolved manifest. Step environment
// variables are reduced to their names so credentials (the admin password
// travels through step env) can never leak into plan output.
type Plan struct {
	Source string     `json:"source"`
	Steps  []PlanStep `json:"steps"`
	Serve  PlanServe  `json:"serve"`
}

// PlanStep is the printable view of a single step.
type PlanStep struct {
	Name         string   `json:"name"`
	Command      []string `json:"command"`
	EnvKeys      []string `json:"envKeys,omitempty"`
	AllowFailure bool     `json:"allowFailure,omitempty"`
	Timeout      string   `json:"timeout,omitempty"`
	Skip         string   `json:"skip,omitempty"`
}

// PlanServe is the printable view of the serve handoff.
type PlanServe struct {
	Command []string `json:"command"`
	Bind    string   `json:"bind,omitempty"`
	Mode    string   `json:"mode,omitempty"`
}

// BuildPlan converts a resolved manifest plus skip decisions into the
// sanitized printable form.
func BuildPlan(m *config.Manifest, skip map[string]string) Plan {
	plan := Plan{
		Source: m.Source,
		Serve: PlanServe{
			Command: m.Serve.Command,
			Bind:    m.Serve.Bind,
			Mode:    m.Serve.Mode.String(),
		},
	}

	for _, step := range m.Steps {
		ps := PlanStep{
			Name:         step.Name,
			Command:      step.Command,
			AllowFailure: step.AllowFailure,
			Skip:         skip[step.Name],
		}
		if step.Timeout.Std() > 0 {
			ps.Timeout = step.Timeout.String()
		}
		for key := range step.Env {
			ps.EnvKeys = append(ps.EnvKeys, key)
		}
		sort.Strings(ps.EnvKeys)
		plan.Steps = append(plan.Steps, ps)
	}
	return plan
}

// FormatPlanStep renders one plan step as a human-readable line.
func FormatPlanStep(step PlanStep) string {
	line := fmt.Sprintf("%s: %s", step.Name, strings.Join(step.Command, " "))

	var notes []string
	if step.AllowFailure {
		notes = append(notes, "allow-failure")
	}
	if step.Timeout != "" {
		notes = append(notes, "timeout "+step.Timeout)
	}
	if len(step.EnvKeys) > 0 {
		notes = append(notes, "env "+strings.Join(step.EnvKeys, ","))
	}
	if step.Skip != "" {
		notes = append(notes, "SKIPPED: "+step.Skip)
	}
	if len(notes) > 0 {
		line += "  [" + strings.Join(notes, "; ") + "]"
	}
	return line
}
