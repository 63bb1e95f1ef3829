package tokenizer

import (
	"strings"
	"sync"
)

// Counter counts tokens in text for a specific model family.
type Counter interface {
	// Count returns the number of tokens in text.
	Count(text string) (int, error)

	// Name identifies the counter implementation.
	Name() string
}

var (
	modelCounters   = make(map[string]Counter)
	modelCountersMu sync.RWMutex
)

// Register installs a counter for the given model name. Prefix matching
// applies at lookup, so registering "gpt-4o" also covers "gpt-4o-mini".
func Register(model string, c Counter) {
	modelCountersMu.Lock()
	defer modelCountersMu.Unlock()
	modelCounters[model] = c
}

// ForModel returns the counter registered for model, falling back to the
// character estimator when nothing matches.
func ForModel(model string) Counter {
	modelCountersMu.RLock()
	defer modelCountersMu.RUnlock()

	if c, ok := modelCounters[model]; ok {
		return c
	}
	for prefix, c := range modelCounters {
		if strings.HasPrefix(model, prefix) {
			return c
		}
	}
	return NewEstimator()
}

// Truncate trims text to at most maxTokens tokens, cutting on word
// boundaries where possible. A counting failure returns the text
// unchanged.
func Truncate(c Counter, text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	n, err := c.Count(text)
	if err != nil || n <= maxTokens {
		return text
	}

	words := strings.Fields(text)
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		candidate := strings.Join(words[:mid], " ")
		n, err := c.Count(candidate)
		if err != nil {
			return text
		}
		if n <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.Join(words[:lo], " ")
}
