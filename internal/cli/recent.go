package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	recentLimit   int
	recentProject bool
	recentSource  string
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently created memories",
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().IntVar(&recentLimit, "limit", 10, "maximum number of memories")
	recentCmd.Flags().BoolVar(&recentProject, "project", false, "filter to current project (current directory name)")
	recentCmd.Flags().StringVar(&recentSource, "source", "", "filter by source")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	projectName := ""
	if recentProject {
		projectName = currentProject()
	}

	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.Store().ListRecent(recentLimit, projectName, recentSource)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No memories found.")
		return nil
	}

	fmt.Println("\nRecent memories:")
	for _, r := range records {
		line := fmt.Sprintf("  [%s] %s", r.CreatedAt.Format("Jan 02"), r.Title)
		if r.Category != "" {
			line += fmt.Sprintf(" [%s]", r.Category)
		}
		if len(r.Tags) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(r.Tags, ","))
		}
		fmt.Println(line)
	}
	return nil
}
