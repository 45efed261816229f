package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <memory-id>",
	Short: "Delete a memory by ID or prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	deleted, err := svc.Delete(args[0])
	if err != nil {
		return err
	}

	if deleted {
		fmt.Printf("Deleted memory %s\n", args[0])
	} else {
		fmt.Printf("No memory found for %s\n", args[0])
	}
	return nil
}
