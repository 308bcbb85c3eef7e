// Package realtime carries live progress events from the pipeline to
// subscribers.
//
// Events are addressed by channel (one per project, "project:<id>") and topic
// ("processing:transcription:start", "ai-generation:summary:complete",
// "results:summary"). The in-process Hub keeps a bounded, sequenced buffer per
// channel that WebSocket and long-poll subscribers read from; RedisPublisher
// and Bridge relay events between daemon instances. Publishing is best-effort:
// callers log failures and carry on.
package realtime
