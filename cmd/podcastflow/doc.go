// Package main hosts the podcastflow CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon (serve) and talks to a running one
// over its HTTP API for project inspection, uploads and live progress. It
// centralizes configuration resolution and API addressing so subcommands
// only deal with presentation.
package main
