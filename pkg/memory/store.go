package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const embeddingDimKey = "embedding_dim"

// timeFormat is RFC3339 with fixed-width nanoseconds so the TEXT
// columns sort lexicographically in timestamp order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DimensionMismatchError is returned when a requested embedding
// dimension differs from the one already recorded for the database.
// Callers use it to degrade to keyword-only behavior instead of
// failing the operation.
type DimensionMismatchError struct {
	Stored    int
	Requested int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: database has %d, provider returned %d (run 'echovault reindex' to rebuild)", e.Stored, e.Requested)
}

// Store is the SQLite-backed persistence layer for memories. It keeps
// an FTS5 index in sync via triggers and owns the sqlite-vec vector
// table lifecycle.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenStore opens (or creates) the database at dbPath and initializes
// the schema. The vector table is deferred until a dimension is known.
func OpenStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}

	// Open database with FTS5 support
	db, err := sql.Open("sqlite3", dbPath+"?_fts5=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			what TEXT NOT NULL,
			why TEXT,
			impact TEXT,
			tags TEXT,
			category TEXT,
			project TEXT NOT NULL,
			source TEXT,
			related_files TEXT,
			file_path TEXT NOT NULL,
			section_anchor TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			updated_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS memory_details (
			memory_id TEXT PRIMARY KEY REFERENCES memories(id),
			body TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			title, what, why, impact, tags, category, project, source,
			content='memories', content_rowid='rowid',
			tokenize='porter unicode61'
		);

		CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, title, what, why, impact, tags, category, project, source)
			VALUES (new.rowid, new.title, new.what, new.why, new.impact, new.tags, new.category, new.project, new.source);
		END;

		CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, title, what, why, impact, tags, category, project, source)
			VALUES ('delete', old.rowid, old.title, old.what, old.why, old.impact, old.tags, old.category, old.project, old.source);
			INSERT INTO memories_fts(rowid, title, what, why, impact, tags, category, project, source)
			VALUES (new.rowid, new.title, new.what, new.why, new.impact, new.tags, new.category, new.project, new.source);
		END;

		CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, title, what, why, impact, tags, category, project, source)
			VALUES ('delete', old.rowid, old.title, old.what, old.why, old.impact, old.tags, old.category, old.project, old.source);
		END;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Recreate the vector table if a dimension was already recorded
	// (reopening an existing database).
	dim, ok, err := s.EmbeddingDim()
	if err != nil {
		return err
	}
	if ok {
		return s.createVecTable(dim)
	}
	return nil
}

func (s *Store) createVecTable(dim int) error {
	stmt := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memories_vec USING vec0(
			rowid INTEGER PRIMARY KEY,
			embedding float[%d]
		)
	`, dim)
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return nil
}

// HasVectorIndex reports whether the vector table exists.
func (s *Store) HasVectorIndex() bool {
	var name string
	err := s.db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='memories_vec'
	`).Scan(&name)
	return err == nil
}

// DropVectorIndex removes the vector table.
func (s *Store) DropVectorIndex() error {
	if _, err := s.db.Exec("DROP TABLE IF EXISTS memories_vec"); err != nil {
		return fmt.Errorf("failed to drop vector table: %w", err)
	}
	return nil
}

// EmbeddingDim returns the active embedding dimension, if one has been
// recorded for this database.
func (s *Store) EmbeddingDim() (int, bool, error) {
	val, ok, err := s.GetMeta(embeddingDimKey)
	if err != nil || !ok {
		return 0, false, err
	}
	dim, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt embedding_dim metadata %q: %w", val, err)
	}
	return dim, true, nil
}

// SetEmbeddingDim records the active embedding dimension.
func (s *Store) SetEmbeddingDim(dim int) error {
	return s.SetMeta(embeddingDimKey, strconv.Itoa(dim))
}

// EnsureVectorIndex records the dimension and materializes the vector
// table on first use. Idempotent for the same dimension; returns
// DimensionMismatchError when a different dimension is already active.
func (s *Store) EnsureVectorIndex(dim int) error {
	stored, ok, err := s.EmbeddingDim()
	if err != nil {
		return err
	}
	if !ok {
		if err := s.SetEmbeddingDim(dim); err != nil {
			return err
		}
		return s.createVecTable(dim)
	}
	if stored != dim {
		return &DimensionMismatchError{Stored: stored, Requested: dim}
	}
	return nil
}

// ResetVectorIndex drops the vector table and recreates it at the given
// dimension. Existing vectors are discarded; callers re-embed.
func (s *Store) ResetVectorIndex(dim int) error {
	if err := s.DropVectorIndex(); err != nil {
		return err
	}
	if err := s.SetEmbeddingDim(dim); err != nil {
		return err
	}
	return s.createVecTable(dim)
}

// InsertMemory persists a memory and its optional detail body, and
// returns the rowid. The FTS index is updated synchronously by trigger.
func (s *Store) InsertMemory(mem *Memory, details string) (int64, error) {
	tagsJSON, err := json.Marshal(mem.Tags)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal tags: %w", err)
	}
	filesJSON, err := json.Marshal(mem.RelatedFiles)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal related files: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO memories (
			id, title, what, why, impact, tags, category, project,
			source, related_files, file_path, section_anchor,
			created_at, updated_at, updated_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		mem.ID, mem.Title, mem.What, mem.Why, mem.Impact,
		string(tagsJSON), mem.Category, mem.Project, mem.Source,
		string(filesJSON), mem.FilePath, mem.SectionAnchor,
		mem.CreatedAt.Format(timeFormat), mem.UpdatedAt.Format(timeFormat),
		mem.UpdatedCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert memory: %w", err)
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if details != "" {
		if _, err := tx.Exec(
			"INSERT INTO memory_details (memory_id, body) VALUES (?, ?)",
			mem.ID, details,
		); err != nil {
			return 0, fmt.Errorf("failed to insert details: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rowid, nil
}

// InsertVector stores the embedding for a row. No-op when the vector
// table does not exist; callers are expected to run EnsureVectorIndex
// first.
func (s *Store) InsertVector(rowid int64, embedding []float32) error {
	if !s.HasVectorIndex() {
		return nil
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO memories_vec (rowid, embedding) VALUES (?, ?)",
		rowid, string(embeddingJSON),
	); err != nil {
		return fmt.Errorf("failed to insert vector: %w", err)
	}
	return nil
}

const recordColumns = `
	m.rowid, m.id, m.title, m.what, m.why, m.impact, m.tags, m.category,
	m.project, m.source, m.related_files, m.file_path, m.section_anchor,
	m.created_at, m.updated_at, m.updated_count,
	EXISTS(SELECT 1 FROM memory_details WHERE memory_id = m.id) AS has_details
`

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable, extra ...any) (*Record, error) {
	var rec Record
	var why, impact, tags, category, source, relatedFiles, anchor sql.NullString
	var createdAt, updatedAt string

	dest := []any{
		&rec.RowID, &rec.ID, &rec.Title, &rec.What, &why, &impact,
		&tags, &category, &rec.Project, &source, &relatedFiles,
		&rec.FilePath, &anchor, &createdAt, &updatedAt,
		&rec.UpdatedCount, &rec.HasDetails,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.Why = why.String
	rec.Impact = impact.String
	rec.Category = category.String
	rec.Source = source.String
	rec.SectionAnchor = anchor.String
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &rec.Tags); err != nil {
			return nil, fmt.Errorf("corrupt tags for memory %s: %w", rec.ID, err)
		}
	}
	if relatedFiles.Valid && relatedFiles.String != "" {
		if err := json.Unmarshal([]byte(relatedFiles.String), &rec.RelatedFiles); err != nil {
			return nil, fmt.Errorf("corrupt related_files for memory %s: %w", rec.ID, err)
		}
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for memory %s: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for memory %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// GetMemory fetches a memory by full id or unique prefix. Returns nil
// when nothing matches.
func (s *Store) GetMemory(idOrPrefix string) (*Record, error) {
	row := s.db.QueryRow(
		"SELECT "+recordColumns+" FROM memories m WHERE m.id LIKE ?",
		idOrPrefix+"%",
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// GetDetails fetches the detail body for a memory by id or prefix.
// Returns nil when the memory has no details.
func (s *Store) GetDetails(idOrPrefix string) (*Detail, error) {
	var d Detail
	err := s.db.QueryRow(
		"SELECT memory_id, body FROM memory_details WHERE memory_id LIKE ?",
		idOrPrefix+"%",
	).Scan(&d.MemoryID, &d.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateFields is a sparse set of field replacements for UpdateMemory.
// Nil pointers leave the column unchanged; a nil Tags slice leaves tags
// unchanged.
type UpdateFields struct {
	What          *string
	Why           *string
	Impact        *string
	Tags          []string
	DetailsAppend string
}

// UpdateMemory applies sparse field replacements to a memory found by
// id or prefix, always bumping updated_count and updated_at. The
// DetailsAppend text is appended to the existing detail body with a
// blank-line separator, creating the row when absent. Returns false
// when no memory matches.
func (s *Store) UpdateMemory(idOrPrefix string, fields UpdateFields) (bool, error) {
	var fullID string
	err := s.db.QueryRow("SELECT id FROM memories WHERE id LIKE ?", idOrPrefix+"%").Scan(&fullID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	sets := []string{"updated_count = updated_count + 1", "updated_at = ?"}
	params := []any{time.Now().UTC().Format(timeFormat)}

	if fields.What != nil {
		sets = append(sets, "what = ?")
		params = append(params, *fields.What)
	}
	if fields.Why != nil {
		sets = append(sets, "why = ?")
		params = append(params, *fields.Why)
	}
	if fields.Impact != nil {
		sets = append(sets, "impact = ?")
		params = append(params, *fields.Impact)
	}
	if fields.Tags != nil {
		tagsJSON, err := json.Marshal(fields.Tags)
		if err != nil {
			return false, fmt.Errorf("failed to marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		params = append(params, string(tagsJSON))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	params = append(params, fullID)
	if _, err := tx.Exec(
		"UPDATE memories SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		params...,
	); err != nil {
		return false, fmt.Errorf("failed to update memory: %w", err)
	}

	if fields.DetailsAppend != "" {
		var existing string
		err := tx.QueryRow("SELECT body FROM memory_details WHERE memory_id = ?", fullID).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.Exec(
				"INSERT INTO memory_details (memory_id, body) VALUES (?, ?)",
				fullID, fields.DetailsAppend,
			); err != nil {
				return false, fmt.Errorf("failed to insert details: %w", err)
			}
		case err != nil:
			return false, err
		default:
			if _, err := tx.Exec(
				"UPDATE memory_details SET body = ? WHERE memory_id = ?",
				existing+"\n\n"+fields.DetailsAppend, fullID,
			); err != nil {
				return false, fmt.Errorf("failed to append details: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMemory removes a memory, its detail body, its FTS entry and its
// vector as one unit. Returns false when no memory matches.
func (s *Store) DeleteMemory(idOrPrefix string) (bool, error) {
	var fullID string
	var rowid int64
	err := s.db.QueryRow("SELECT id, rowid FROM memories WHERE id LIKE ?", idOrPrefix+"%").Scan(&fullID, &rowid)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	hasVec := s.HasVectorIndex()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM memory_details WHERE memory_id = ?", fullID); err != nil {
		return false, err
	}
	if _, err := tx.Exec("DELETE FROM memories WHERE id = ?", fullID); err != nil {
		return false, err
	}
	if hasVec {
		if _, err := tx.Exec("DELETE FROM memories_vec WHERE rowid = ?", rowid); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// buildFTSQuery turns free text into an FTS5 prefix-match expression:
// tokens are OR-combined so any term can contribute to the rank.
func buildFTSQuery(query string) string {
	terms := strings.Fields(query)
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		parts = append(parts, `"`+strings.ReplaceAll(term, `"`, `""`)+`"*`)
	}
	return strings.Join(parts, " OR ")
}

// KeywordSearch runs ranked FTS5 search. Scores are positive BM25
// relevance (higher is better); an empty result is not an error.
func (s *Store) KeywordSearch(query string, limit int, project, source string) ([]SearchResult, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return []SearchResult{}, nil
	}

	where := ""
	params := []any{ftsQuery}
	if project != "" {
		where += " AND m.project = ?"
		params = append(params, project)
	}
	if source != "" {
		where += " AND m.source = ?"
		params = append(params, source)
	}
	params = append(params, limit)

	rows, err := s.db.Query(`
		SELECT `+recordColumns+`, -fts.rank AS score
		FROM memories_fts fts
		JOIN memories m ON m.rowid = fts.rowid
		WHERE fts.memories_fts MATCH ?`+where+`
		ORDER BY fts.rank
		LIMIT ?
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

// VectorSearch runs a KNN query over the vector table and converts
// distance to similarity (1 - distance), so higher is better. The
// underlying query is unfiltered; project/source narrowing is a
// post-pass, so a filtered call can return fewer than limit results.
// Returns empty when no vector index exists.
func (s *Store) VectorSearch(embedding []float32, limit int, project, source string) ([]SearchResult, error) {
	if !s.HasVectorIndex() {
		return []SearchResult{}, nil
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT `+recordColumns+`, v.distance
		FROM memories_vec v
		JOIN memories m ON m.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, string(embeddingJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	results, err := scanSearchResults(rows)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = 1.0 - results[i].Score
	}

	if project != "" || source != "" {
		filtered := results[:0]
		for _, r := range results {
			if project != "" && r.Project != project {
				continue
			}
			if source != "" && r.Source != source {
				continue
			}
			filtered = append(filtered, r)
		}
		results = filtered
	}

	return results, nil
}

func scanSearchResults(rows *sql.Rows) ([]SearchResult, error) {
	results := []SearchResult{}
	for rows.Next() {
		var score float64
		rec, err := scanRecord(rows, &score)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Record: *rec, Score: score})
	}
	return results, rows.Err()
}

// ListRecent returns records ordered by creation time descending.
func (s *Store) ListRecent(limit int, project, source string) ([]Record, error) {
	where := []string{}
	params := []any{}
	if project != "" {
		where = append(where, "m.project = ?")
		params = append(params, project)
	}
	if source != "" {
		where = append(where, "m.source = ?")
		params = append(params, source)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	params = append(params, limit)

	rows, err := s.db.Query(`
		SELECT `+recordColumns+`
		FROM memories m
		`+whereClause+`
		ORDER BY m.created_at DESC
		LIMIT ?
	`, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListForReindex returns all records in rowid order for a full
// re-embed pass.
func (s *Store) ListForReindex() ([]Record, error) {
	rows, err := s.db.Query("SELECT " + recordColumns + " FROM memories m ORDER BY m.rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Count returns the total number of matching memories, unlimited.
func (s *Store) Count(project, source string) (int, error) {
	where := []string{}
	params := []any{}
	if project != "" {
		where = append(where, "project = ?")
		params = append(params, project)
	}
	if source != "" {
		where = append(where, "source = ?")
		params = append(params, source)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM memories "+whereClause, params...).Scan(&count)
	return count, err
}

// SetMeta stores a metadata key-value pair.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta fetches a metadata value; ok is false when the key is absent.
func (s *Store) GetMeta(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
