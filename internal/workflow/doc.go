// Package workflow drives projects through the processing pipeline.
//
// The Orchestrator owns one run: it claims an uploaded project with a
// compare-and-set on status, transcribes, fans the six generation tasks out
// concurrently, and joins their results. Every step is checkpointed through
// the store's per-job status, so a run interrupted by a restart resumes
// without repeating completed work.
//
// The Manager is the long-lived loop around it. Each tick reclaims processing
// projects whose heartbeat went stale, then starts runs for uploaded projects
// oldest first, bounded by workflow.max_concurrent_runs.
package workflow
