// Package project defines the project record and its lifecycle rules.
//
// Statuses and job statuses only move forward; the predecessor tables here are
// the single source for those rules and the store enforces them with
// compare-and-set updates. DeriveAggregateStatus collapses job statuses into a
// phase status for every consumer (API, CLI watch, realtime tracker).
//
// The package also owns the transcript and generation artifact shapes and the
// upload rules (size cap, MIME allow-list, file format).
package project
