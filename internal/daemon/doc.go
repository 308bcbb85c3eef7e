// Package daemon coordinates the long-running podcastflow process.
//
// It wires configuration, the project store, blob storage, the realtime hub,
// the workflow manager and the optional Kafka and Redis transports into a
// single lifecycle with flock-based locking to prevent multiple instances
// sharing one database. The daemon also owns the HTTP API server.
//
// Keep orchestration logic here: pipeline steps live in workflow and its
// collaborators while the daemon focuses on startup, shutdown and wiring.
package daemon
