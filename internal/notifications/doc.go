// Package notifications pushes terminal project outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// workflow code can notify unconditionally. Each terminal state can be turned
// off individually in the [notifications] config section.
package notifications
