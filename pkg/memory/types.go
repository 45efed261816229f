package memory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidCategories lists the accepted memory categories.
var ValidCategories = []string{"decision", "pattern", "bug", "context", "learning"}

// RawMemory is the unprocessed input for creating a memory
type RawMemory struct {
	Title        string   `json:"title"`
	What         string   `json:"what"`
	Why          string   `json:"why,omitempty"`
	Impact       string   `json:"impact,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Category     string   `json:"category,omitempty"`
	RelatedFiles []string `json:"related_files,omitempty"`
	Details      string   `json:"details,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// Validate checks required fields and the category enum before anything
// touches the store.
func (r *RawMemory) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(r.What) == "" {
		return fmt.Errorf("what is required")
	}
	if r.Category != "" {
		valid := false
		for _, c := range ValidCategories {
			if r.Category == c {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid category %q (must be: %s)", r.Category, strings.Join(ValidCategories, ", "))
		}
	}
	return nil
}

// Memory is a persisted memory record
type Memory struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	What          string    `json:"what"`
	Why           string    `json:"why,omitempty"`
	Impact        string    `json:"impact,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Category      string    `json:"category,omitempty"`
	Project       string    `json:"project"`
	Source        string    `json:"source,omitempty"`
	RelatedFiles  []string  `json:"related_files,omitempty"`
	FilePath      string    `json:"file_path"`
	SectionAnchor string    `json:"section_anchor,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	UpdatedCount  int       `json:"updated_count"`
}

var anchorRe = regexp.MustCompile(`[^a-z0-9]+`)

// AnchorSlug derives a markdown section anchor from a title: lowercase,
// runs of non-alphanumerics collapsed to a single dash.
func AnchorSlug(title string) string {
	return strings.Trim(anchorRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// NewMemory creates a Memory from raw input with generated id, anchor
// and timestamps.
func NewMemory(raw *RawMemory, project, filePath string) *Memory {
	now := time.Now().UTC()
	return &Memory{
		ID:            uuid.NewString(),
		Title:         raw.Title,
		What:          raw.What,
		Why:           raw.Why,
		Impact:        raw.Impact,
		Tags:          raw.Tags,
		Category:      raw.Category,
		Project:       project,
		Source:        raw.Source,
		RelatedFiles:  raw.RelatedFiles,
		FilePath:      filePath,
		SectionAnchor: AnchorSlug(raw.Title),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// EmbedText builds the canonical text a memory is embedded from.
func (m *Memory) EmbedText() string {
	return fmt.Sprintf("%s %s %s %s %s", m.Title, m.What, m.Why, m.Impact, strings.Join(m.Tags, " "))
}

// Detail is the optional long-form body attached 1:1 to a memory
type Detail struct {
	MemoryID string `json:"memory_id"`
	Body     string `json:"body"`
}

// Record is a stored memory plus storage-level metadata
type Record struct {
	Memory
	RowID      int64 `json:"-"`
	HasDetails bool  `json:"has_details"`
}

// SearchResult is an ephemeral projection of a record with a relevance
// score; never written back.
type SearchResult struct {
	Record
	Score float64 `json:"score"`
}

// MergeTags unions two tag lists with case-insensitive de-duplication.
// Existing order is preserved and new tags are appended.
func MergeTags(existing, extra []string) []string {
	combined := make([]string, len(existing), len(existing)+len(extra))
	copy(combined, existing)
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[strings.ToLower(t)] = true
	}
	for _, t := range extra {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		combined = append(combined, t)
		seen[key] = true
	}
	return combined
}
