// Package main is the entry point for the entrypoint CLI.
//
// This binary boots a web application container: it runs the bootstrap
// sequence (migrations, static assets, admin provisioning) and then hands
// the process over to the application server. All functionality lives in
// the internal/cli package, which defines cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags
// by the release pipeline. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"github.com/deploykit/entrypoint/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package, keeping the
	// build system decoupled from the CLI framework.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
