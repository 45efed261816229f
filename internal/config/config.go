package config

import (
	"fmt"
)

// Config represents the main echovault configuration
type Config struct {
	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding" yaml:"embedding"`

	// Context injection
	Context ContextConfig `json:"context" mapstructure:"context" yaml:"context"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging" yaml:"logging"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider string `json:"provider" mapstructure:"provider" yaml:"provider"` // ollama, openai, llama
	Model    string `json:"model" mapstructure:"model" yaml:"model"`
	BaseURL  string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`
}

// ContextConfig holds context injection settings
type ContextConfig struct {
	Semantic    string `json:"semantic" mapstructure:"semantic" yaml:"semantic"` // auto, always, never
	TopupRecent bool   `json:"topup_recent" mapstructure:"topup_recent" yaml:"topup_recent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Context: ContextConfig{
			Semantic:    "auto",
			TopupRecent: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "openai", "llama":
	default:
		return fmt.Errorf("invalid embedding provider %s (must be: ollama, openai, llama)", c.Embedding.Provider)
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding model is required")
	}

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("api_key is required for the openai provider")
	}

	switch c.Context.Semantic {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid context.semantic %s (must be: auto, always, never)", c.Context.Semantic)
	}

	return nil
}
