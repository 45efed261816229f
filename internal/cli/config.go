package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harun/echovault/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long:  `Show the effective configuration, with API keys redacted.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a starter config.yaml",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing config")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// configDisplay mirrors Config for display, adding the resolved home
// and masking the API key.
type configDisplay struct {
	Embedding  config.EmbeddingConfig `yaml:"embedding"`
	Context    config.ContextConfig   `yaml:"context"`
	Logging    config.LoggingConfig   `yaml:"logging"`
	MemoryHome string                 `yaml:"memory_home"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}

	cfg, err := config.Load(home)
	if err != nil {
		return err
	}

	display := configDisplay{
		Embedding:  cfg.Embedding,
		Context:    cfg.Context,
		Logging:    cfg.Logging,
		MemoryHome: home,
	}
	if display.Embedding.APIKey != "" {
		display.Embedding.APIKey = "<redacted>"
	}

	data, err := yaml.Marshal(display)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

const configTemplate = `# EchoVault configuration

# Embedding provider for semantic search.
# Without this, keyword search (FTS5) still works.
embedding:
  provider: ollama              # ollama | openai | llama
  model: nomic-embed-text
  # base_url: http://localhost:11434
  # api_key: sk-...             # required for openai

# How memories are retrieved at session start.
# "auto" uses vectors when available, falls back to keywords.
context:
  semantic: auto                # auto | always | never
  topup_recent: true            # also include recent memories

logging:
  level: info
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}

	loader := config.NewLoader(home)
	configPath := loader.Path()

	if _, err := os.Stat(configPath); err == nil && !configForce {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Println("Use --force to overwrite.")
		return nil
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("failed to create memory home: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit the file to configure your embedding provider.")
	return nil
}
