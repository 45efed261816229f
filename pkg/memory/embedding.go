package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingProvider generates fixed-length vectors from text. Embed is
// used when indexing documents; SearchEmbed when vectorizing a query.
// Providers that distinguish prompt framing (nomic-style) return
// different vectors from the two methods, always at the same dimension.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	SearchEmbed(ctx context.Context, text string) ([]float32, error)
}

// OllamaProvider talks to a local Ollama server.
type OllamaProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]any{
		"model":  p.model,
		"prompt": text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding for model %s", p.model)
	}

	return result.Embedding, nil
}

// SearchEmbed is identical to Embed for Ollama: the API has no query
// framing.
func (p *OllamaProvider) SearchEmbed(ctx context.Context, text string) ([]float32, error) {
	return p.Embed(ctx, text)
}

// IsModelLoaded checks whether the model is resident in the Ollama
// server via /api/ps. Used to decide if semantic search is cheap enough
// to attempt in "auto" mode; any failure counts as not loaded.
func IsModelLoaded(ctx context.Context, model, baseURL string) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}

	req, err := http.NewRequestWithContext(ctx, "GET", strings.TrimRight(baseURL, "/")+"/api/ps", nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	target := normalizeModelName(model)
	for _, m := range result.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if normalizeModelName(name) == target {
			return true
		}
	}
	return false
}

// normalizeModelName strips the tag suffix ("nomic-embed-text:latest").
func normalizeModelName(name string) string {
	base, _, _ := strings.Cut(name, ":")
	return base
}

// OpenAIProvider uses the hosted OpenAI embeddings API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding for model %s", p.model)
	}

	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// SearchEmbed is identical to Embed for OpenAI.
func (p *OpenAIProvider) SearchEmbed(ctx context.Context, text string) ([]float32, error) {
	return p.Embed(ctx, text)
}

// LlamaProvider talks to a llama.cpp-style embedding server running a
// nomic model, which wants "search_document:" / "search_query:" prompt
// framing on the two sides of retrieval.
type LlamaProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewLlamaProvider creates a llama.cpp server embedding provider.
func NewLlamaProvider(model, baseURL string) *LlamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11435"
	}
	return &LlamaProvider{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *LlamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, "search_document: "+text)
}

func (p *LlamaProvider) SearchEmbed(ctx context.Context, text string) ([]float32, error) {
	return p.embed(ctx, "search_query: "+text)
}

func (p *LlamaProvider) embed(ctx context.Context, content string) ([]float32, error) {
	reqBody := map[string]any{
		"model":   p.model,
		"content": content,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call llama server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llama server error (status %d): %s", resp.StatusCode, string(body))
	}

	// The server responds with one entry per input, each holding a
	// batch of embeddings: [{"embedding": [[...]]}].
	var result []struct {
		Embedding [][]float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result) == 0 || len(result[0].Embedding) == 0 || len(result[0].Embedding[0]) == 0 {
		return nil, fmt.Errorf("llama server returned empty embedding for model %s", p.model)
	}

	return result[0].Embedding[0], nil
}
