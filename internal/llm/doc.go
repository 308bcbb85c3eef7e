// Package llm talks to generative text models.
//
// Two backends implement Completer: an OpenAI-compatible chat completions
// client (OpenRouter by default) and a Gemini client built on
// google.golang.org/genai. Both retry rate limits, 5xx responses and timeouts
// with capped exponential backoff, honour Retry-After, and classify the final
// error as services.ErrTransient or services.ErrFatal. DecodeJSON tolerates
// code fences and prose around the JSON payload that models often add.
package llm
