// Package transcription wraps the hosted speech-to-text provider.
//
// Client submits a reachable audio URL (uploading local blobs first), polls
// until the provider finishes, and maps the result onto project.Transcript
// with sentence segments, speaker utterances and auto chapters. Rate limits
// and 5xx responses are retried with backoff; rejected media fails fast with a
// services.ErrFatal marker. RenderSRT turns a transcript into caption text.
package transcription
