// Package main hosts the reeler CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, checks the external tools and
// directories a run depends on, and drives a manifest of episodes through the
// download and encode pipeline. History and configuration scaffolding live in
// their own subcommands.
package main
