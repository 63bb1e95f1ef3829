package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		model := rapid.String().Draw(t, "model")
		prompt := rapid.String().Draw(t, "prompt")
		temp := rapid.Float64Range(0, 2).Draw(t, "temp")

		params := map[string]any{"temperature": temp}
		a := NewFingerprint(model, prompt, params)
		b := NewFingerprint(model, prompt, map[string]any{"temperature": temp})
		if a != b {
			t.Fatalf("same inputs produced different fingerprints: %s vs %s", a, b)
		}
		if len(a) != 64 {
			t.Fatalf("fingerprint must be hex sha256, got len %d", len(a))
		}
	})
}

func TestNewFingerprint_DistinguishesInputs(t *testing.T) {
	t.Parallel()

	base := NewFingerprint("gpt-4", "question", map[string]any{"temperature": 0.1})

	assert.NotEqual(t, base, NewFingerprint("gpt-4o", "question", map[string]any{"temperature": 0.1}),
		"model must contribute to identity")
	assert.NotEqual(t, base, NewFingerprint("gpt-4", "question!", map[string]any{"temperature": 0.1}),
		"prompt must contribute to identity")
	assert.NotEqual(t, base, NewFingerprint("gpt-4", "question", map[string]any{"temperature": 0.7}),
		"params must contribute to identity")
}

func TestNewFingerprint_FieldShiftDoesNotCollide(t *testing.T) {
	t.Parallel()

	// Moving a character between model and prompt must change the hash.
	a := NewFingerprint("ab", "c", nil)
	b := NewFingerprint("a", "bc", nil)
	assert.NotEqual(t, a, b)
}
