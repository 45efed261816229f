package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harun/echovault/internal/setup"
)

var (
	setupConfigDir string
	setupProject   bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install EchoVault integration for an agent",
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove EchoVault integration for an agent",
}

func init() {
	for _, cmd := range []*cobra.Command{setupCmd, uninstallCmd} {
		cmd.PersistentFlags().StringVar(&setupConfigDir, "config-dir", "", "path to the agent's config directory")
		cmd.PersistentFlags().BoolVar(&setupProject, "project", false, "install in current project instead of globally")
	}

	setupCmd.AddCommand(
		agentCmd("claude-code", "Install session hooks into Claude Code settings", ".claude", setup.ClaudeCode),
		agentCmd("cursor", "Install session hooks into Cursor hooks.json", ".cursor", setup.Cursor),
		agentCmd("codex", "Install EchoVault section into Codex AGENTS.md", ".codex", setup.Codex),
	)
	uninstallCmd.AddCommand(
		agentCmd("claude-code", "Remove hooks from Claude Code settings", ".claude", setup.UninstallClaudeCode),
		agentCmd("cursor", "Remove hooks from Cursor hooks.json", ".cursor", setup.UninstallCursor),
		agentCmd("codex", "Remove EchoVault section from Codex AGENTS.md", ".codex", setup.UninstallCodex),
	)

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(uninstallCmd)
}

// agentCmd builds a setup/uninstall subcommand for one agent, resolving
// the target config directory from the shared flags.
func agentCmd(name, short, dotDir string, fn func(string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigDir(dotDir)
			if err != nil {
				return err
			}
			msg, err := fn(target)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

// resolveConfigDir picks the agent config directory: explicit
// --config-dir wins, --project uses the working directory, otherwise
// the user's home.
func resolveConfigDir(dotDir string) (string, error) {
	if setupConfigDir != "" {
		return setupConfigDir, nil
	}
	if setupProject {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, dotDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dotDir), nil
}
