package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index with the current embedding provider",
	Long: `Drop the vector index and re-embed every memory. Use this after
switching embedding models, which usually changes the vector dimension.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	total, err := svc.Store().Count("", "")
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("No memories to reindex.")
		return nil
	}

	fmt.Printf("Reindexing %d memories...\n", total)

	result, err := svc.Reindex(cmd.Context(), func(current, count int) {
		if current == count {
			fmt.Printf("  %d/%d\n", current, count)
		} else {
			fmt.Printf("  %d/%d\r", current, count)
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("Re-indexed %d memories with %s (%d dims)\n", result.Count, result.Model, result.Dim)
	return nil
}
