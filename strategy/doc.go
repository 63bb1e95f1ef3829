// Package strategy implements the reasoning state machines that turn a
// question into an answer by interleaving model calls with retrieval.
//
// Every strategy advances through repeated Step calls against a shared
// State that accumulates an append-only trace. Reaching the configured
// round budget never fails a session: the strategy resolves it with its
// best partial answer, marked degraded. Strategies are registered by
// name and constructed per session through the registry.
package strategy
