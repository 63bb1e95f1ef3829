package llm

import "context"

// Backend is the raw generative-model transport. Implementations classify
// failures through types.Error: transient faults (rate limit, timeout,
// upstream 5xx) carry Retryable=true and are retried by the Client; fatal
// faults (authentication, malformed request, content policy) abort
// immediately.
//
// Backends must be safe for concurrent use; the core holds no lock around
// Complete.
type Backend interface {
	Complete(ctx context.Context, req *Request) (string, error)
	Name() string
}
