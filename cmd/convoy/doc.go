// Package main hosts the convoy CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, then hands off to the
// internal packages: `run` submits a manifest of jobs to the orchestrator and
// renders their progress, `check` runs preflight checks, and `config` scaffolds
// or prints configuration. Keep behavior in internal packages and surface it
// here through flags.
package main
