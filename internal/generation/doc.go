// Package generation implements the six generation tasks that turn a
// transcript into publishable artifacts.
//
// Key moments are derived from provider chapters without a model call.
// YouTube timestamps keep chapter timing and ask the model only for chapter
// titles, falling back to the raw headlines. The remaining four tasks ask the
// model for a fixed JSON shape, normalize the reply, and fall back to a
// deterministic derivation when the reply cannot be parsed or violates the
// shape. Provider failures other than bad output are returned to the caller,
// which owns retries.
package generation
