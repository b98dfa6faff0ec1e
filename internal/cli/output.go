// Package cli — output.go holds the shared report formatting used by the
// up command. Pure functions are separated from printing so they can be
// unit tested without capturing stdout.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deploykit/entrypoint/internal/model"
)

// printReport renders a sequence report to stdout in the format selected
// by the --json flag.
func printReport(report *model.SequenceReport) {
	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Printf("Error formatting JSON: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Bootstrap run %s: %s\n", report.RunID, report.Status)
	for _, step := range report.Steps {
		fmt.Println(FormatStepResult(step))
	}
}

// FormatStepResult renders a single step result as a table row.
// Skipped steps show their reason instead of a duration.
func FormatStepResult(step model.StepResult) string {
	if step.Status == model.StatusSkipped {
		return fmt.Sprintf("  %-18s %-16s %s", step.Name, step.Status, step.Error)
	}

	line := fmt.Sprintf("  %-18s %-16s %6dms", step.Name, step.Status, step.DurationMs)
	if step.Error != "" {
		line += "  " + step.Error
	}
	return line
}

// joinComma joins parts with ", " — small helper shared by error
// formatting paths.
func joinComma(parts []string) string {
	return strings.Join(parts, ", ")
}
