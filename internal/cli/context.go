package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/echovault/pkg/memory"
)

var (
	contextProject  bool
	contextSource   string
	contextLimit    int
	contextQuery    string
	contextSemantic bool
	contextFTSOnly  bool
	contextFormat   string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Output memory pointers for agent context injection",
	Long: `Print a compact list of memory pointers suitable for injection into an
agent's context at session start. With --query, pointers are
relevance-ranked; otherwise the most recent memories are shown.`,
	RunE: runContext,
}

func init() {
	contextCmd.Flags().BoolVar(&contextProject, "project", false, "filter to current project (current directory name)")
	contextCmd.Flags().StringVar(&contextSource, "source", "", "filter by source")
	contextCmd.Flags().IntVar(&contextLimit, "limit", 10, "maximum number of pointers")
	contextCmd.Flags().StringVar(&contextQuery, "query", "", "search query for relevance ranking")
	contextCmd.Flags().BoolVar(&contextSemantic, "semantic", false, "force semantic search (embeddings)")
	contextCmd.Flags().BoolVar(&contextFTSOnly, "fts-only", false, "disable embeddings and use keyword search only")
	contextCmd.Flags().StringVar(&contextFormat, "format", "hook", "output format (hook, agents-md)")
	contextCmd.MarkFlagsMutuallyExclusive("semantic", "fts-only")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	projectName := ""
	if contextProject {
		projectName = currentProject()
	}

	semanticMode := ""
	if contextSemantic {
		semanticMode = "always"
	}
	if contextFTSOnly {
		semanticMode = "never"
	}

	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.GetContext(cmd.Context(), memory.ContextOptions{
		Limit:        contextLimit,
		Project:      projectName,
		Source:       contextSource,
		Query:        contextQuery,
		SemanticMode: semanticMode,
	})
	if err != nil {
		return err
	}

	if len(result.Results) == 0 {
		fmt.Println("No memories found.")
		return nil
	}

	if contextFormat == "agents-md" {
		fmt.Println("## Memory Context")
		fmt.Println()
	}

	fmt.Printf("Available memories (%d total, showing %d):\n", result.Total, len(result.Results))

	for _, r := range result.Results {
		line := fmt.Sprintf("- [%s] %s", r.CreatedAt.Format("Jan 02"), r.Title)
		if r.Category != "" {
			line += fmt.Sprintf(" [%s]", r.Category)
		}
		if len(r.Tags) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(r.Tags, ","))
		}
		fmt.Println(line)
	}

	if contextFormat == "agents-md" {
		fmt.Println()
	}
	fmt.Println("Use `echovault search <query>` for full details on any memory.")
	return nil
}
