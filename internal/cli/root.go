package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/echovault/internal/config"
	"github.com/harun/echovault/internal/logger"
	"github.com/harun/echovault/pkg/memory"
)

const version = "0.1.0"

var (
	homeFlag string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "echovault",
	Short: "EchoVault - local memory for coding agents",
	Long: `EchoVault is a local-first memory store for coding agents.
Memories live as plain markdown in a vault directory, with a SQLite
index providing hybrid keyword and semantic search on top.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "memory home directory (default is $MEMORY_HOME or $HOME/.memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// resolveHome picks the memory home: --home flag, then MEMORY_HOME,
// then ~/.memory. Environment resolution happens here at the CLI edge;
// the service only ever sees an explicit path.
func resolveHome() (string, error) {
	if homeFlag != "" {
		return homeFlag, nil
	}
	if env := os.Getenv("MEMORY_HOME"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".memory"), nil
}

// newService wires up config, logger and the memory service for a
// command invocation. Callers must Close the service.
func newService() (*memory.Service, zerolog.Logger, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	cfg, err := config.Load(home)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log := logger.New(logLevel)

	svc, err := memory.NewService(home, cfg, log)
	if err != nil {
		return nil, log, err
	}
	return svc, log, nil
}

// currentProject returns the working directory's base name, the
// default project scope for save and the --project filter flags.
func currentProject() string {
	wd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return filepath.Base(wd)
}
