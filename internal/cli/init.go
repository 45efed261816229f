package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the memory vault",
	Long:  `Create the memory home directory and vault so commands have somewhere to write.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(home, "vault"), 0755); err != nil {
		return fmt.Errorf("failed to create vault: %w", err)
	}

	fmt.Printf("Memory vault initialized at %s\n", home)
	return nil
}
