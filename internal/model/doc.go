// Package model defines the domain types and value objects for the
// entrypoint CLI.
//
// This package contains pure data structures and depends on nothing else
// in the module. The central types are the per-step results
// and the SequenceReport produced by a bootstrap run — transient
// representations of a single process start, never persisted to disk.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
