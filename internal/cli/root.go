// Package cli implements the cobra-based commands of the entrypoint binary.
//
// Each subcommand (up, check, plan) is defined in its own file within this
// package. This file defines the root command that serves as the parent
// for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploykit/entrypoint/internal/config"
	"github.com/deploykit/entrypoint/internal/model"
	"github.com/deploykit/entrypoint/internal/telemetry"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output (reports, plans, probe
	// results) is formatted as JSON, and switches logging to JSON records.
	jsonOutput bool

	// verbose enables debug-level logging on stderr.
	verbose bool

	// configPath points at an explicit boot manifest. Empty means search
	// the app root for bootstrap.{yaml,yml,json,jsonc}, falling back to
	// the built-in Django sequence.
	configPath string

	// envFile points at an explicit env file to overlay before reading
	// the environment. Empty means an optional ./.env.
	envFile string
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entrypoint",
		Short: "Deployment bootstrap sequencer for web application containers",
		Long: `entrypoint runs a fixed, ordered bootstrap sequence once per container
start — apply database migrations, publish static assets, provision the
administrative account — then hands the process over to the application
server.

The sequence short-circuits: the first failing step aborts the run and the
process exits with that step's own exit code, so the server never starts
against a half-migrated schema. The default sequence covers a conventional
Django deployment and can be replaced with a bootstrap.yaml manifest.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// The logger must exist before any subcommand logic runs; the
		// level may be raised again later once DEBUG is known.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			telemetry.Setup(telemetry.Options{Debug: verbose, JSON: jsonOutput})
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Boot manifest path (default: bootstrap.{yaml,json} in the app root)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file to load before reading the environment (default: optional ./.env)")

	rootCmd.AddCommand(NewUpCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewPlanCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own
// exit codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode, because stdout is
		// reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// resolveConfig loads the environment and the boot manifest the way every
// subcommand needs them: explicit --config path first, then a manifest
// file discovered in the app root, then the built-in Django sequence.
//
// When the environment carries DEBUG=true the logger is re-setup at debug
// level, so a deployment gets verbose bootstrap logs without changing the
// container command line.
func resolveConfig() (*config.Env, *config.Manifest, error) {
	e, err := config.LoadEnv(envFile)
	if err != nil {
		return nil, nil, err
	}

	if e.Debug && !verbose {
		telemetry.Setup(telemetry.Options{Debug: true, JSON: jsonOutput})
	}

	path := configPath
	if path == "" {
		searchDir := e.AppRoot
		if searchDir == "" {
			searchDir = "."
		}
		if found, ok := config.FindManifest(searchDir); ok {
			path = found
		}
	}

	var m *config.Manifest
	if path != "" {
		m, err = config.LoadManifest(path, e)
		if err != nil {
			return nil, nil, err
		}
	} else {
		m = config.DefaultManifest(e)
	}
	return e, m, nil
}
