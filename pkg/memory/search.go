package memory

import (
	"context"
	"fmt"
	"sort"
)

// Default weights and thresholds for hybrid search. Keyword and vector
// scores live on incompatible scales, so each candidate list is
// normalized against its own maximum before the weighted sum.
const (
	DefaultFTSWeight     = 0.3
	DefaultVectorWeight  = 0.7
	DefaultMinFTSResults = 3
)

// SearchOptions configures hybrid search behavior.
type SearchOptions struct {
	Limit         int
	Project       string
	Source        string
	FTSWeight     float64
	VectorWeight  float64
	MinFTSResults int
}

func (o *SearchOptions) withDefaults() SearchOptions {
	opts := SearchOptions{}
	if o != nil {
		opts = *o
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.FTSWeight == 0 {
		opts.FTSWeight = DefaultFTSWeight
	}
	if opts.VectorWeight == 0 {
		opts.VectorWeight = DefaultVectorWeight
	}
	if opts.MinFTSResults == 0 {
		opts.MinFTSResults = DefaultMinFTSResults
	}
	return opts
}

// normalizeScores maps scores to [0,1] by dividing by the list's own
// maximum. An empty or all-zero list is left at zero.
func normalizeScores(results []SearchResult) {
	maxScore := 0.0
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	if maxScore <= 0 {
		for i := range results {
			results[i].Score = 0
		}
		return
	}
	for i := range results {
		results[i].Score /= maxScore
	}
}

// MergeResults combines keyword and vector candidates with weighted
// scoring. Each list is normalized independently; a record present in
// only one list contributes only that weighted term. Sorted by combined
// score descending, truncated to limit.
func MergeResults(ftsResults, vecResults []SearchResult, ftsWeight, vecWeight float64, limit int) []SearchResult {
	normalizeScores(ftsResults)
	normalizeScores(vecResults)

	combined := make(map[string]SearchResult, len(ftsResults)+len(vecResults))
	for _, r := range ftsResults {
		r.Score = ftsWeight * r.Score
		combined[r.ID] = r
	}
	for _, r := range vecResults {
		if existing, ok := combined[r.ID]; ok {
			existing.Score += vecWeight * r.Score
			combined[r.ID] = existing
			continue
		}
		r.Score = vecWeight * r.Score
		combined[r.ID] = r
	}

	ranked := make([]SearchResult, 0, len(combined))
	for _, r := range combined {
		ranked = append(ranked, r)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// TieredSearch is the keyword-first retrieval strategy: the embedding
// gateway is only consulted when keyword results are sparse, because an
// embedding round trip is orders of magnitude slower than a local FTS
// query. Gateway and vector failures degrade to the keyword candidates
// and are reported through the returned warning, never as an error.
func TieredSearch(ctx context.Context, store *Store, provider EmbeddingProvider, query string, opts *SearchOptions) ([]SearchResult, string, error) {
	o := opts.withDefaults()

	ftsResults, err := store.KeywordSearch(query, o.Limit*2, o.Project, o.Source)
	if err != nil {
		return nil, "", err
	}
	normalizeScores(ftsResults)

	// Enough keyword matches: skip the embedding call entirely.
	if len(ftsResults) >= o.MinFTSResults {
		return truncate(ftsResults, o.Limit), "", nil
	}

	if provider == nil {
		return truncate(ftsResults, o.Limit), "", nil
	}

	queryVec, err := provider.SearchEmbed(ctx, query)
	if err != nil {
		return truncate(ftsResults, o.Limit), fmt.Sprintf("embedding unavailable (%v), keyword results only", err), nil
	}

	vecResults, err := store.VectorSearch(queryVec, o.Limit*2, o.Project, o.Source)
	if err != nil {
		return truncate(ftsResults, o.Limit), fmt.Sprintf("vector search failed (%v), keyword results only", err), nil
	}

	// FTS scores are already in [0,1]; re-normalizing inside the merge
	// is a no-op for them.
	return MergeResults(ftsResults, vecResults, o.FTSWeight, o.VectorWeight, o.Limit), "", nil
}

// HybridSearch always runs both keyword and vector search and merges.
// With a nil provider it degrades to normalized keyword-only results.
func HybridSearch(ctx context.Context, store *Store, provider EmbeddingProvider, query string, opts *SearchOptions) ([]SearchResult, error) {
	o := opts.withDefaults()

	ftsResults, err := store.KeywordSearch(query, o.Limit*2, o.Project, o.Source)
	if err != nil {
		return nil, err
	}

	if provider == nil {
		normalizeScores(ftsResults)
		return truncate(ftsResults, o.Limit), nil
	}

	queryVec, err := provider.SearchEmbed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vecResults, err := store.VectorSearch(queryVec, o.Limit*2, o.Project, o.Source)
	if err != nil {
		return nil, err
	}

	return MergeResults(ftsResults, vecResults, o.FTSWeight, o.VectorWeight, o.Limit), nil
}

func truncate(results []SearchResult, limit int) []SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
