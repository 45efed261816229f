package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading for a memory home directory.
type Loader struct {
	home string
}

// NewLoader creates a new config loader rooted at the memory home.
func NewLoader(home string) *Loader {
	return &Loader{home: home}
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return filepath.Join(l.home, "config.yaml")
}

// Load loads the configuration from <home>/config.yaml. A missing file
// yields the defaults; environment variables with the MEMORY_ prefix
// override file values.
func (l *Loader) Load() (*Config, error) {
	configPath := l.Path()

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read environment variables
	v.SetEnvPrefix("MEMORY")
	v.AutomaticEnv()

	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Save writes the configuration to <home>/config.yaml.
func (l *Loader) Save(cfg *Config) error {
	if err := os.MkdirAll(l.home, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(l.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(home string) (*Config, error) {
	loader := NewLoader(home)
	return loader.Load()
}
