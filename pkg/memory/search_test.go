package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScores(t *testing.T) {
	results := []SearchResult{
		{Score: 4.0},
		{Score: 2.0},
		{Score: 1.0},
	}
	normalizeScores(results)

	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 0.5, results[1].Score)
	assert.Equal(t, 0.25, results[2].Score)
}

func TestNormalizeScores_AllZero(t *testing.T) {
	results := []SearchResult{{Score: 0}, {Score: 0}}
	normalizeScores(results)

	assert.Equal(t, 0.0, results[0].Score)
	assert.Equal(t, 0.0, results[1].Score)
}

func result(id string, score float64) SearchResult {
	r := SearchResult{Score: score}
	r.ID = id
	return r
}

func TestMergeResults(t *testing.T) {
	fts := []SearchResult{result("a", 4.0), result("b", 2.0)}
	vec := []SearchResult{result("b", 0.9), result("c", 0.45)}

	merged := MergeResults(fts, vec, 0.3, 0.7, 10)
	require.Len(t, merged, 3)

	// b appears in both lists: 0.3*(2/4) + 0.7*(0.9/0.9)
	assert.Equal(t, "b", merged[0].ID)
	assert.InDelta(t, 0.85, merged[0].Score, 1e-9)

	// Scores stay within [0,1] and come out sorted descending
	for i, r := range merged {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, merged[i-1].Score)
		}
	}
}

func TestMergeResults_Limit(t *testing.T) {
	fts := []SearchResult{result("a", 3.0), result("b", 2.0), result("c", 1.0)}

	merged := MergeResults(fts, nil, 0.3, 0.7, 2)
	assert.Len(t, merged, 2)
}

func seedSearchStore(t *testing.T, s *Store, titles ...string) {
	t.Helper()
	for i, title := range titles {
		mem := testMemory(title, fmt.Sprintf("content about widgets number %d", i), "proj")
		_, err := s.InsertMemory(mem, "")
		require.NoError(t, err)
	}
}

func TestTieredSearch_SkipsEmbeddingWhenEnoughKeywordHits(t *testing.T) {
	s := createTestStore(t)
	seedSearchStore(t, s, "Widget one", "Widget two", "Widget three", "Widget four")

	provider := NewMockEmbeddingProvider(4)

	results, warning, err := TieredSearch(context.Background(), s, provider, "widgets", &SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Len(t, results, 3)

	// The provider must never have been consulted
	assert.Equal(t, 0, provider.searchCalls)
	assert.Equal(t, 0, provider.embedCalls)
}

func TestTieredSearch_FallsThroughToVectors(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.EnsureVectorIndex(4))

	provider := NewMockEmbeddingProvider(4)

	mem := testMemory("Lone entry", "about kumquats", "proj")
	rowid, err := s.InsertMemory(mem, "")
	require.NoError(t, err)
	vec, err := provider.Embed(context.Background(), mem.EmbedText())
	require.NoError(t, err)
	require.NoError(t, s.InsertVector(rowid, vec))

	// One keyword hit is below the tier threshold, so vectors run too
	results, warning, err := TieredSearch(context.Background(), s, provider, "kumquats", &SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, warning)
	require.NotEmpty(t, results)
	assert.Equal(t, mem.ID, results[0].ID)
	assert.Equal(t, 1, provider.searchCalls)
}

func TestTieredSearch_DegradesOnProviderFailure(t *testing.T) {
	s := createTestStore(t)
	seedSearchStore(t, s, "Only one widget entry")

	provider := NewMockEmbeddingProvider(4)
	provider.failErr = errors.New("connection refused")

	results, warning, err := TieredSearch(context.Background(), s, provider, "widget", &SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Contains(t, warning, "embedding unavailable")
	assert.Contains(t, warning, "connection refused")
	assert.Len(t, results, 1)
}

func TestTieredSearch_NilProviderKeywordOnly(t *testing.T) {
	s := createTestStore(t)
	seedSearchStore(t, s, "Solitary widget")

	results, warning, err := TieredSearch(context.Background(), s, nil, "widget", &SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].Score, 1.0)
}

func TestHybridSearch_NilProvider(t *testing.T) {
	s := createTestStore(t)
	seedSearchStore(t, s, "Widget alpha", "Widget beta")

	results, err := HybridSearch(context.Background(), s, nil, "widget", &SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1.0, results[0].Score)
}
