package mocks

import (
	"context"
	"sync"

	"github.com/ragweave/ragweave/llm"
	"github.com/ragweave/ragweave/types"
)

// ScriptedBackend is an llm.Backend that replays a scripted sequence of
// responses and errors. It records every request it receives.
type ScriptedBackend struct {
	mu      sync.Mutex
	name    string
	script  []outcome
	cursor  int
	request []llm.Request

	// Default is returned once the script is exhausted.
	Default string

	// Respond, when set, overrides the script entirely.
	Respond func(req *llm.Request) (string, error)
}

type outcome struct {
	resp string
	err  error
}

// NewScriptedBackend creates an empty scripted backend named "scripted".
func NewScriptedBackend() *ScriptedBackend {
	return &ScriptedBackend{name: "scripted", Default: "ok"}
}

// QueueResponse appends a successful response to the script.
func (b *ScriptedBackend) QueueResponse(resp string) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, outcome{resp: resp})
	return b
}

// QueueError appends a failure to the script.
func (b *ScriptedBackend) QueueError(err error) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.script = append(b.script, outcome{err: err})
	return b
}

// QueueTransient appends a retryable upstream failure.
func (b *ScriptedBackend) QueueTransient(msg string) *ScriptedBackend {
	return b.QueueError(types.Transient(types.ErrUpstreamError, msg))
}

// QueueFatal appends a non-retryable failure.
func (b *ScriptedBackend) QueueFatal(msg string) *ScriptedBackend {
	return b.QueueError(types.Fatal(types.ErrInvalidRequest, msg))
}

// Complete implements llm.Backend.
func (b *ScriptedBackend) Complete(ctx context.Context, req *llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	b.request = append(b.request, *req)
	if b.Respond != nil {
		respond := b.Respond
		b.mu.Unlock()
		return respond(req)
	}
	var out outcome
	if b.cursor < len(b.script) {
		out = b.script[b.cursor]
		b.cursor++
	} else {
		out = outcome{resp: b.Default}
	}
	b.mu.Unlock()

	return out.resp, out.err
}

// Name implements llm.Backend.
func (b *ScriptedBackend) Name() string { return b.name }

// Calls returns how many times Complete was invoked.
func (b *ScriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.request)
}

// Requests returns a copy of every request received so far.
func (b *ScriptedBackend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.Request, len(b.request))
	copy(out, b.request)
	return out
}
