// Package services defines shared utilities consumed by the pipeline steps and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, job names, pipeline steps, users,
//     and correlation identifiers for logging and tracing.
//   - The error taxonomy (unauthorized, validation, transient and fatal provider
//     failures, persistence) plus the Wrap helper that keeps both marker and
//     cause visible to errors.Is.
//
// Integrations with third-party providers live in subpackages (llm,
// transcription, blob) and report failures using these markers so the workflow
// can decide between retrying and failing a step.
package services
