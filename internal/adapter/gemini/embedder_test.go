package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"docpipe/internal/adapter/gemini"
)

func TestEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float32{0.1, 0.2, 0.3},
			},
		})
	}))
	defer ts.Close()

	embedder, err := gemini.NewEmbedder(context.Background(), "test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(context.Background(), "hello world")
	assert.NoError(t, err)
	if assert.Len(t, vec, 3) {
		assert.Equal(t, float32(0.1), vec[0])
	}
}

func TestEmbedder_EmptyEmbeddingIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float32{}},
		})
	}))
	defer ts.Close()

	embedder, err := gemini.NewEmbedder(context.Background(), "test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer embedder.Close()

	_, err = embedder.Embed(context.Background(), "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no embedding")
}
