package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorCount(t *testing.T) {
	e := NewEstimator()

	n, err := e.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = e.Count("hello world this is a test sentence")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Less(t, n, 35)

	// A single char still counts as one token.
	n, err = e.Count("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEstimatorCJKWeighting(t *testing.T) {
	e := NewEstimator()

	ascii, err := e.Count(strings.Repeat("ab", 10))
	require.NoError(t, err)
	cjk, err := e.Count(strings.Repeat("你好", 10))
	require.NoError(t, err)

	assert.Greater(t, cjk, ascii, "CJK text should estimate denser than ASCII of equal rune count")
}

func TestForModelFallsBackToEstimator(t *testing.T) {
	c := ForModel("totally-unknown-model")
	assert.Equal(t, "estimator", c.Name())
}

func TestForModelResolvesOpenAIFamilies(t *testing.T) {
	c := ForModel("gpt-4o-mini")
	assert.Equal(t, "tiktoken[o200k_base]", c.Name())

	c = ForModel("gpt-3.5-turbo")
	assert.Equal(t, "tiktoken[cl100k_base]", c.Name())

	// Dated snapshots resolve through the prefix match.
	c = ForModel("gpt-3.5-turbo-0125")
	assert.Equal(t, "tiktoken[cl100k_base]", c.Name())
}

func TestTiktokenCounterEncodingSelection(t *testing.T) {
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenCounter("gpt-4o").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenCounter("some-future-model").Name())
}

func TestForModelPrefixMatch(t *testing.T) {
	Register("test-model", NewEstimator())
	c := ForModel("test-model-large-v2")
	assert.Equal(t, "estimator", c.Name())
}

func TestTruncate(t *testing.T) {
	e := NewEstimator()
	text := strings.Repeat("word ", 100)

	out := Truncate(e, text, 10)
	n, err := e.Count(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 10)
	assert.NotEmpty(t, out)

	// Under budget text passes through untouched.
	assert.Equal(t, "short text", Truncate(e, "short text", 1000))
	assert.Equal(t, "", Truncate(e, text, 0))
}
