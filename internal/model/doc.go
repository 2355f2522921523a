// Package model defines the domain types and value objects for the
// traffic-board CLI.
//
// This package contains pure data structures with no external dependencies.
// Entries are loaded once from the LED location table and are read-only
// afterwards. CanonicalTargets, Outcomes and OutputRecords are created fresh
// for every run and discarded once the artifacts are written; nothing here
// is persisted between runs.
//
// The package also defines the batched validation report used by the
// loader and resolver, the per-target failure kinds used by the speed
// sources, and the exit codes (ExitCode) and CLIError type used by the
// CLI layer.
package model
