package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingProvider for testing (generates deterministic embeddings)
type MockEmbeddingProvider struct {
	dimension   int
	embedCalls  int
	searchCalls int
	failErr     error
}

func NewMockEmbeddingProvider(dimension int) *MockEmbeddingProvider {
	return &MockEmbeddingProvider{dimension: dimension}
}

func (p *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.embedCalls++
	if p.failErr != nil {
		return nil, p.failErr
	}

	// Generate deterministic embedding based on text hash
	embedding := make([]float32, p.dimension)
	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}

	for i := 0; i < p.dimension; i++ {
		embedding[i] = float32((hash+i)%100) / 100.0
	}

	return embedding, nil
}

func (p *MockEmbeddingProvider) SearchEmbed(ctx context.Context, text string) ([]float32, error) {
	p.searchCalls++
	if p.failErr != nil {
		return nil, p.failErr
	}
	return p.Embed(ctx, text)
}

func TestOllamaProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "hello world", req["prompt"])

		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float32{0.1, 0.2, 0.3},
		})
	}))
	defer server.Close()

	p := NewOllamaProvider("nomic-embed-text", server.URL)

	embedding, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)

	// SearchEmbed has no query framing for Ollama
	searchEmbedding, err := p.SearchEmbed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, embedding, searchEmbedding)
}

func TestOllamaProvider_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaProvider("missing-model", server.URL)

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllamaProvider_Embed_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer server.Close()

	p := NewOllamaProvider("nomic-embed-text", server.URL)

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestIsModelLoaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ps", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "nomic-embed-text:latest"},
			},
		})
	}))
	defer server.Close()

	ctx := context.Background()
	assert.True(t, IsModelLoaded(ctx, "nomic-embed-text", server.URL))
	assert.True(t, IsModelLoaded(ctx, "nomic-embed-text:latest", server.URL))
	assert.False(t, IsModelLoaded(ctx, "all-minilm", server.URL))
}

func TestIsModelLoaded_ServerDown(t *testing.T) {
	// Point at a closed server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	assert.False(t, IsModelLoaded(context.Background(), "nomic-embed-text", server.URL))
}

func TestLlamaProvider_PromptFraming(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompts = append(prompts, req["content"].(string))

		json.NewEncoder(w).Encode([]map[string]any{
			{"embedding": [][]float32{{0.5, 0.6}}},
		})
	}))
	defer server.Close()

	p := NewLlamaProvider("nomic-embed-text-v1.5", server.URL)

	embedding, err := p.Embed(context.Background(), "the document")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, embedding)

	_, err = p.SearchEmbed(context.Background(), "the query")
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.Equal(t, "search_document: the document", prompts[0])
	assert.Equal(t, "search_query: the query", prompts[1])
}

func TestNormalizeModelName(t *testing.T) {
	assert.Equal(t, "nomic-embed-text", normalizeModelName("nomic-embed-text:latest"))
	assert.Equal(t, "nomic-embed-text", normalizeModelName("nomic-embed-text"))
}
