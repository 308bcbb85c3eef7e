// Package config loads, normalizes, and validates podcastflow configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks for provider credentials such as ASSEMBLYAI_API_KEY and
// OPENROUTER_API_KEY. The Config type centralizes every knob the daemon and CLI
// need so storage, providers and realtime settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
