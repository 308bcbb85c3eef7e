// Package store persists projects and their per-job status in SQLite.
//
// Every status change is a compare-and-set against the allowed predecessors so
// concurrent writers cannot move a project or job backward. Result payloads
// are written in the same transaction that completes their job.
package store
