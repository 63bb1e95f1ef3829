// Package types defines shared types used across the module, most
// importantly the structured error taxonomy that drives retry and
// failure-propagation decisions: transient backend faults (retryable),
// fatal backend faults, step-budget exhaustion, session timeouts, and
// cache corruption.
package types
