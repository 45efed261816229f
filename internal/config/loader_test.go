package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_Load_FromFile(t *testing.T) {
	home := t.TempDir()
	content := `embedding:
  provider: llama
  model: nomic-embed-text-v1.5
  base_url: http://localhost:9999
context:
  semantic: never
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0644))

	cfg, err := Load(home)
	require.NoError(t, err)

	assert.Equal(t, "llama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text-v1.5", cfg.Embedding.Model)
	assert.Equal(t, "http://localhost:9999", cfg.Embedding.BaseURL)
	assert.Equal(t, "never", cfg.Context.Semantic)
	// Unspecified sections keep their defaults
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoader_Load_InvalidConfig(t *testing.T) {
	home := t.TempDir()
	content := `embedding:
  provider: cohere
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0644))

	_, err := Load(home)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid embedding provider")
}

func TestLoader_SaveAndReload(t *testing.T) {
	home := t.TempDir()
	loader := NewLoader(home)

	cfg := DefaultConfig()
	cfg.Embedding.Provider = "llama"
	cfg.Embedding.BaseURL = "http://localhost:11435"
	require.NoError(t, loader.Save(cfg))

	reloaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}
