// Package tokenizer provides token counting for prompt budgeting, with
// exact tiktoken counts for OpenAI-family models and a character based
// estimator for everything else.
package tokenizer
