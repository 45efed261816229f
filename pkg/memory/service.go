package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/echovault/internal/config"
)

// dedupThreshold is the normalized score a top keyword candidate must
// reach, together with a title match, for an incoming memory to be
// treated as an update to that candidate.
const dedupThreshold = 0.7

// SaveResult reports the outcome of a save. Warning carries a non-fatal
// condition (embedding failed, dimension mismatch) that did not stop
// the save.
type SaveResult struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
	Action   string `json:"action"` // created | updated
	Warning  string `json:"warning,omitempty"`
}

// SearchOutcome is a search result set plus an optional non-fatal
// degradation warning.
type SearchOutcome struct {
	Results []SearchResult `json:"results"`
	Warning string         `json:"warning,omitempty"`
}

// ContextResult is the payload for agent context injection.
type ContextResult struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Warning string         `json:"warning,omitempty"`
}

// ContextOptions configures GetContext.
type ContextOptions struct {
	Limit        int
	Project      string
	Source       string
	Query        string
	SemanticMode string // auto | always | never; "" uses config
	TopupRecent  *bool  // nil uses config
}

// ReindexResult summarizes a completed vector index rebuild.
type ReindexResult struct {
	Count int    `json:"count"`
	Dim   int    `json:"dim"`
	Model string `json:"model"`
}

// Service is the main orchestrator for memory operations: redaction,
// vault writing, storage, embedding and hybrid search. One instance
// owns one database; operations run to completion before the next
// begins.
type Service struct {
	home       string
	vaultDir   string
	ignorePath string
	cfg        *config.Config
	store      *Store
	logger     zerolog.Logger

	// memoized on first use
	provider     EmbeddingProvider
	providerErr  error
	providerOnce bool
	redactor     *Redactor
	vectorsOK    *bool
}

// NewService opens the memory home directory: vault/ for markdown
// files, index.db for the database. The home path is explicit; callers
// resolve defaults and environment themselves.
func NewService(home string, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	if home == "" {
		return nil, errors.New("memory home is required")
	}

	vaultDir := filepath.Join(home, "vault")
	if err := os.MkdirAll(vaultDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	store, err := OpenStore(filepath.Join(home, "index.db"), logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		home:       home,
		vaultDir:   vaultDir,
		ignorePath: filepath.Join(home, ".memoryignore"),
		cfg:        cfg,
		store:      store,
		logger:     logger,
	}, nil
}

// Store exposes the underlying store for point operations.
func (s *Service) Store() *Store {
	return s.store
}

// embeddingProvider builds the configured provider on first use and
// memoizes the result, including a construction failure.
func (s *Service) embeddingProvider() (EmbeddingProvider, error) {
	if s.providerOnce {
		return s.provider, s.providerErr
	}
	s.providerOnce = true

	e := s.cfg.Embedding
	switch e.Provider {
	case "ollama":
		s.provider = NewOllamaProvider(e.Model, e.BaseURL)
	case "openai":
		s.provider = NewOpenAIProvider(e.APIKey, e.Model)
	case "llama":
		s.provider = NewLlamaProvider(e.Model, e.BaseURL)
	default:
		s.providerErr = fmt.Errorf("unknown embedding provider: %s", e.Provider)
	}
	return s.provider, s.providerErr
}

// redact returns the memoized redactor, loading user patterns from
// .memoryignore on first use.
func (s *Service) redact() *Redactor {
	if s.redactor == nil {
		s.redactor = NewRedactor()
		if err := s.redactor.LoadIgnoreFile(s.ignorePath, s.logger); err != nil {
			s.logger.Warn().Err(err).Str("path", s.ignorePath).Msg("Failed to load .memoryignore")
		}
	}
	return s.redactor
}

// vectorsAvailable reports whether the vector table exists, memoized
// until a dimension event invalidates it.
func (s *Service) vectorsAvailable() bool {
	if s.vectorsOK == nil {
		ok := s.store.HasVectorIndex()
		s.vectorsOK = &ok
	}
	return *s.vectorsOK
}

func (s *Service) setVectorsAvailable(ok bool) {
	s.vectorsOK = &ok
}

// Save runs the full pipeline: redact, dedup-probe, then either merge
// into a near-duplicate in the same project or create a new memory
// (markdown write, insert, embed). Embedding failures never fail the
// save; they surface as SaveResult.Warning.
func (s *Service) Save(ctx context.Context, raw RawMemory, project string) (*SaveResult, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if project == "" {
		return nil, errors.New("project is required")
	}

	red := s.redact()
	raw.What = red.Redact(raw.What)
	if raw.Why != "" {
		raw.Why = red.Redact(raw.Why)
	}
	if raw.Impact != "" {
		raw.Impact = red.Redact(raw.Impact)
	}
	if raw.Details != "" {
		raw.Details = red.Redact(raw.Details)
	}

	today := time.Now().UTC().Format("2006-01-02")

	// Dedup probe: look for a near-duplicate in the same project. The
	// probe is best-effort; any failure degrades to the create path.
	probe := raw.Title + " " + raw.What
	candidates, err := s.store.KeywordSearch(probe, 5, project, "")
	if err != nil {
		s.logger.Warn().Err(err).Msg("Dedup probe failed, treating as no candidates")
		candidates = nil
	}

	if len(candidates) > 0 {
		result, ok, err := s.tryMerge(ctx, raw, candidates, probe, today)
		if err != nil {
			return nil, err
		}
		if ok {
			return result, nil
		}
	}

	// Create path
	projectDir := filepath.Join(s.vaultDir, project)
	filePath := filepath.Join(projectDir, today+"-session.md")
	mem := NewMemory(&raw, project, filePath)

	if err := WriteSessionMemory(projectDir, mem, today, raw.Details); err != nil {
		return nil, err
	}

	rowid, err := s.store.InsertMemory(mem, raw.Details)
	if err != nil {
		return nil, err
	}

	warning := s.embedAndStore(ctx, rowid, mem.EmbedText())

	s.logger.Debug().Str("id", mem.ID).Str("project", project).Msg("Memory created")
	return &SaveResult{ID: mem.ID, FilePath: filePath, Action: "created", Warning: warning}, nil
}

// tryMerge decides whether the top dedup candidate is the same memory
// and, if so, merges the incoming fields into it. The normalization
// denominator widens to an unfiltered probe when the project-scoped
// probe found exactly one candidate, so a lone hit is judged against
// broader context. Heuristic preserved from long-standing behavior.
//
// A store failure while applying the merge is returned to the caller;
// falling through to the create path there would commit a duplicate.
func (s *Service) tryMerge(ctx context.Context, raw RawMemory, candidates []SearchResult, probe, today string) (*SaveResult, bool, error) {
	broad := candidates
	if len(broad) == 1 {
		if unfiltered, err := s.store.KeywordSearch(probe, 5, "", ""); err == nil && len(unfiltered) > 0 {
			broad = unfiltered
		}
	}

	maxScore := 0.0
	for _, c := range broad {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}

	top := candidates[0]
	normalized := 0.0
	if maxScore > 0 {
		normalized = top.Score / maxScore
	}

	// Score alone is not enough: common words can rank unrelated titles
	// highly, so the titles must also match.
	titleMatch := strings.EqualFold(strings.TrimSpace(raw.Title), strings.TrimSpace(top.Title))
	if normalized < dedupThreshold || !titleMatch {
		return nil, false, nil
	}

	mergedTags := MergeTags(top.Tags, raw.Tags)

	detailsAppend := ""
	if raw.Details != "" {
		detailsAppend = fmt.Sprintf("--- updated %s ---\n%s", today, raw.Details)
	}

	// Sparse replacement: why and impact keep their stored values when
	// the duplicate save omits them.
	what := raw.What
	fields := UpdateFields{
		What:          &what,
		Tags:          mergedTags,
		DetailsAppend: detailsAppend,
	}
	merged := top.Memory
	merged.What, merged.Tags = what, mergedTags
	if raw.Why != "" {
		why := raw.Why
		fields.Why = &why
		merged.Why = why
	}
	if raw.Impact != "" {
		impact := raw.Impact
		fields.Impact = &impact
		merged.Impact = impact
	}

	if _, err := s.store.UpdateMemory(top.ID, fields); err != nil {
		return nil, false, fmt.Errorf("failed to merge into memory %s: %w", top.ID, err)
	}

	warning := s.embedAndStore(ctx, top.RowID, merged.EmbedText())

	s.logger.Debug().Str("id", top.ID).Float64("score", normalized).Msg("Memory merged into existing")
	return &SaveResult{ID: top.ID, FilePath: top.FilePath, Action: "updated", Warning: warning}, true, nil
}

// embedAndStore embeds text and registers the vector for a row. All
// failures are non-fatal and come back as a warning string; a
// dimension mismatch additionally marks vectors unavailable.
func (s *Service) embedAndStore(ctx context.Context, rowid int64, text string) string {
	provider, err := s.embeddingProvider()
	if err != nil {
		return fmt.Sprintf("embedding unavailable (%v), memory saved without vector", err)
	}

	embedding, err := provider.Embed(ctx, text)
	if err != nil {
		return fmt.Sprintf("embedding failed (%v), memory saved without vector", err)
	}

	if err := s.store.EnsureVectorIndex(len(embedding)); err != nil {
		var dimErr *DimensionMismatchError
		if errors.As(err, &dimErr) {
			s.setVectorsAvailable(false)
			return fmt.Sprintf("%v; memory saved without vector", dimErr)
		}
		return fmt.Sprintf("vector index unavailable (%v), memory saved without vector", err)
	}
	s.setVectorsAvailable(true)

	if err := s.store.InsertVector(rowid, embedding); err != nil {
		return fmt.Sprintf("vector insert failed (%v), memory saved without vector", err)
	}
	return ""
}

// Search runs tiered hybrid search, degrading to keyword-only when
// vectors are disabled or unavailable. Store errors propagate; gateway
// errors never do.
func (s *Service) Search(ctx context.Context, query string, opts *SearchOptions, useVectors bool) (*SearchOutcome, error) {
	if !useVectors || !s.vectorsAvailable() {
		results, warning, err := TieredSearch(ctx, s.store, nil, query, opts)
		if err != nil {
			return nil, err
		}
		return &SearchOutcome{Results: results, Warning: warning}, nil
	}

	provider, err := s.embeddingProvider()
	if err != nil {
		results, _, ftsErr := TieredSearch(ctx, s.store, nil, query, opts)
		if ftsErr != nil {
			return nil, ftsErr
		}
		return &SearchOutcome{Results: results, Warning: fmt.Sprintf("embedding unavailable (%v), keyword results only", err)}, nil
	}

	results, warning, err := TieredSearch(ctx, s.store, provider, query, opts)
	if err != nil {
		return nil, err
	}
	return &SearchOutcome{Results: results, Warning: warning}, nil
}

// shouldUseSemantic gates query-time embedding in "auto" mode: for
// Ollama only when the model is already loaded, so a cold server never
// stalls context injection.
func (s *Service) shouldUseSemantic(ctx context.Context, mode string) bool {
	switch mode {
	case "never":
		return false
	case "always":
		return true
	}
	if s.cfg.Embedding.Provider == "ollama" {
		return IsModelLoaded(ctx, s.cfg.Embedding.Model, s.cfg.Embedding.BaseURL)
	}
	return true
}

// GetContext returns memory pointers for agent context injection: a
// query-driven search (optionally topped up with recent records) or a
// plain recent listing, plus the unlimited total count.
func (s *Service) GetContext(ctx context.Context, opts ContextOptions) (*ContextResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	total, err := s.store.Count(opts.Project, opts.Source)
	if err != nil {
		return nil, err
	}

	mode := opts.SemanticMode
	if mode == "" {
		mode = s.cfg.Context.Semantic
	}
	if mode != "auto" && mode != "always" && mode != "never" {
		mode = "auto"
	}

	topup := s.cfg.Context.TopupRecent
	if opts.TopupRecent != nil {
		topup = *opts.TopupRecent
	}

	if opts.Query == "" {
		recent, err := s.store.ListRecent(opts.Limit, opts.Project, opts.Source)
		if err != nil {
			return nil, err
		}
		return &ContextResult{Results: recordsToResults(recent), Total: total}, nil
	}

	useVectors := s.shouldUseSemantic(ctx, mode)
	outcome, err := s.Search(ctx, opts.Query, &SearchOptions{
		Limit:   opts.Limit,
		Project: opts.Project,
		Source:  opts.Source,
	}, useVectors)
	if err != nil {
		return nil, err
	}

	results := outcome.Results
	if topup && len(results) < opts.Limit {
		recent, err := s.store.ListRecent(opts.Limit, opts.Project, opts.Source)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(results))
		for _, r := range results {
			seen[r.ID] = true
		}
		for _, rec := range recent {
			if seen[rec.ID] {
				continue
			}
			results = append(results, SearchResult{Record: rec})
			if len(results) >= opts.Limit {
				break
			}
		}
	}

	return &ContextResult{Results: results, Total: total, Warning: outcome.Warning}, nil
}

func recordsToResults(records []Record) []SearchResult {
	results := make([]SearchResult, len(records))
	for i, rec := range records {
		results[i] = SearchResult{Record: rec}
	}
	return results
}

// GetDetails fetches the long-form body for a memory by id or prefix.
// Returns nil when none exists.
func (s *Service) GetDetails(idOrPrefix string) (*Detail, error) {
	return s.store.GetDetails(idOrPrefix)
}

// Delete removes a memory by id or prefix. Returns false when nothing
// matched.
func (s *Service) Delete(idOrPrefix string) (bool, error) {
	return s.store.DeleteMemory(idOrPrefix)
}

// Reindex rebuilds the vector index from scratch with the configured
// provider: probe the dimension, drop and recreate the table, then
// re-embed every memory in rowid order. Progress is reported after
// each item; an interrupted rebuild restarts from scratch.
func (s *Service) Reindex(ctx context.Context, progress func(current, total int)) (*ReindexResult, error) {
	provider, err := s.embeddingProvider()
	if err != nil {
		return nil, err
	}

	probe, err := provider.Embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	dim := len(probe)

	if err := s.store.ResetVectorIndex(dim); err != nil {
		return nil, err
	}

	records, err := s.store.ListForReindex()
	if err != nil {
		return nil, err
	}
	total := len(records)

	for i, rec := range records {
		embedding, err := provider.Embed(ctx, rec.EmbedText())
		if err != nil {
			return nil, fmt.Errorf("failed to embed memory %s: %w", rec.ID, err)
		}
		if err := s.store.InsertVector(rec.RowID, embedding); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	s.setVectorsAvailable(true)

	return &ReindexResult{Count: total, Dim: dim, Model: s.cfg.Embedding.Model}, nil
}

// Close releases the underlying database.
func (s *Service) Close() error {
	return s.store.Close()
}
