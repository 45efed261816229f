package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/echovault/pkg/memory"
)

var (
	searchLimit   int
	searchProject bool
	searchSource  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories using hybrid keyword + semantic search",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchProject, "project", false, "filter to current project (current directory name)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "filter by source")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectName := ""
	if searchProject {
		projectName = currentProject()
	}

	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	outcome, err := svc.Search(cmd.Context(), args[0], &memory.SearchOptions{
		Limit:   searchLimit,
		Project: projectName,
		Source:  searchSource,
	}, true)
	if err != nil {
		return err
	}

	if outcome.Warning != "" {
		fmt.Printf("Warning: %s\n", outcome.Warning)
	}

	if len(outcome.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("\n Results (%d found) \n", len(outcome.Results))

	for i, r := range outcome.Results {
		fmt.Printf("\n [%d] %s (score: %.2f)\n", i+1, r.Title, r.Score)

		meta := fmt.Sprintf("     %s | %s | %s", r.Category, r.CreatedAt.Format("2006-01-02"), r.Project)
		if r.Source != "" {
			meta += " | " + r.Source
		}
		fmt.Println(meta)

		fmt.Printf("     What: %s\n", r.What)
		if r.Why != "" {
			fmt.Printf("     Why: %s\n", r.Why)
		}
		if r.Impact != "" {
			fmt.Printf("     Impact: %s\n", r.Impact)
		}
		if r.HasDetails {
			fmt.Printf("     Details: available (use `echovault details %s`)\n", r.ID[:12])
		}
	}
	return nil
}
