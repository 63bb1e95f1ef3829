// Package llm provides the model client: a thin orchestration layer that
// fingerprints each request, consults the response cache, and wraps the
// raw backend call in a retry loop with exponential backoff. Backends are
// pluggable behind the Backend interface; an OpenAI-compatible HTTP
// backend ships in this package.
package llm
