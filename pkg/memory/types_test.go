package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMemory_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawMemory
		wantErr string
	}{
		{
			name: "valid minimal",
			raw:  RawMemory{Title: "Fixed bug", What: "Changed the thing"},
		},
		{
			name: "valid with category",
			raw:  RawMemory{Title: "Fixed bug", What: "Changed the thing", Category: "bug"},
		},
		{
			name:    "missing title",
			raw:     RawMemory{What: "Changed the thing"},
			wantErr: "title is required",
		},
		{
			name:    "whitespace title",
			raw:     RawMemory{Title: "   ", What: "Changed the thing"},
			wantErr: "title is required",
		},
		{
			name:    "missing what",
			raw:     RawMemory{Title: "Fixed bug"},
			wantErr: "what is required",
		},
		{
			name:    "invalid category",
			raw:     RawMemory{Title: "Fixed bug", What: "Changed the thing", Category: "musing"},
			wantErr: "invalid category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.raw.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAnchorSlug(t *testing.T) {
	assert.Equal(t, "fixed-auth-session-expiry", AnchorSlug("Fixed auth session expiry"))
	assert.Equal(t, "use-pgx-not-lib-pq", AnchorSlug("Use pgx, not lib/pq!"))
	assert.Equal(t, "v2-rollout", AnchorSlug("  v2  Rollout  "))
}

func TestNewMemory(t *testing.T) {
	raw := RawMemory{
		Title:    "Fixed auth session expiry",
		What:     "Sessions were expiring early",
		Tags:     []string{"auth"},
		Category: "bug",
	}

	mem := NewMemory(&raw, "api-server", "/vault/api-server/2026-08-23-session.md")

	assert.NotEmpty(t, mem.ID)
	assert.Equal(t, "api-server", mem.Project)
	assert.Equal(t, "fixed-auth-session-expiry", mem.SectionAnchor)
	assert.Equal(t, 0, mem.UpdatedCount)
	assert.False(t, mem.CreatedAt.IsZero())
	assert.Equal(t, mem.CreatedAt, mem.UpdatedAt)
}

func TestMemory_EmbedText(t *testing.T) {
	mem := Memory{
		Title:  "Fixed auth session expiry",
		What:   "Sessions expired early",
		Why:    "Token refresh raced",
		Impact: "Users logged out",
		Tags:   []string{"auth", "sessions"},
	}

	assert.Equal(t,
		"Fixed auth session expiry Sessions expired early Token refresh raced Users logged out auth sessions",
		mem.EmbedText(),
	)
}

func TestMergeTags(t *testing.T) {
	t.Run("union preserves order", func(t *testing.T) {
		merged := MergeTags([]string{"auth", "sessions"}, []string{"jwt", "auth"})
		assert.Equal(t, []string{"auth", "sessions", "jwt"}, merged)
	})

	t.Run("case insensitive", func(t *testing.T) {
		merged := MergeTags([]string{"Auth"}, []string{"auth", "AUTH", "tokens"})
		assert.Equal(t, []string{"Auth", "tokens"}, merged)
	})

	t.Run("empty existing", func(t *testing.T) {
		merged := MergeTags(nil, []string{"a", "b"})
		assert.Equal(t, []string{"a", "b"}, merged)
	})

	t.Run("empty extra", func(t *testing.T) {
		merged := MergeTags([]string{"a"}, nil)
		assert.Equal(t, []string{"a"}, merged)
	})
}
