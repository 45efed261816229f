package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details <memory-id>",
	Short: "Fetch full details for a specific memory",
	Long:  `Print the long-form body of a memory. The ID may be a unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDetails,
}

func init() {
	rootCmd.AddCommand(detailsCmd)
}

func runDetails(cmd *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	detail, err := svc.GetDetails(args[0])
	if err != nil {
		return err
	}

	if detail == nil {
		fmt.Printf("No details found for memory %s\n", args[0])
		return nil
	}

	fmt.Println(detail.Body)
	return nil
}
