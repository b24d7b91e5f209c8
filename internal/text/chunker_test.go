package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/text"
)

func TestChunker_Deterministic(t *testing.T) {
	c := text.NewChunker(64, 0)
	input := "# Title\n\nFirst paragraph with some words.\n\n# Second\n\nMore prose here."

	a := c.Split(input)
	b := c.Split(input)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i], "segment %d must be byte identical across runs", i)
	}
}

func TestChunker_OrdinalsAreSequential(t *testing.T) {
	c := text.NewChunker(16, 0)
	input := strings.Repeat("paragraph one\n\n", 20)

	segments := c.Split(input)
	require.Greater(t, len(segments), 1)
	for i, s := range segments {
		assert.Equal(t, i, s.Ordinal)
		assert.NotEmpty(t, s.Text)
		assert.Greater(t, s.Tokens, 0)
	}
}

func TestChunker_SplitsByHeaders(t *testing.T) {
	c := text.NewChunker(512, 0)
	input := "# One\n\nalpha\n\n# Two\n\nbeta"

	segments := c.Split(input)
	require.Len(t, segments, 2)
	assert.Contains(t, segments[0].Text, "alpha")
	assert.Contains(t, segments[1].Text, "beta")
}

func TestChunker_RespectsMaxTokens(t *testing.T) {
	c := text.NewChunker(32, 0)
	// One enormous line forces the word-level fallback.
	input := strings.Repeat("word ", 500)

	segments := c.Split(input)
	require.Greater(t, len(segments), 1)
	for _, s := range segments {
		assert.LessOrEqual(t, len(s.Text), 32*4+8, "segment stays near the char budget")
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c := text.NewChunker(512, 0)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n  "))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, text.EstimateTokens(""))
	assert.Equal(t, 1, text.EstimateTokens("ab"))
	assert.Equal(t, 25, text.EstimateTokens(strings.Repeat("x", 100)))
}
