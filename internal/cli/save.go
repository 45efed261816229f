package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/echovault/pkg/memory"
)

var (
	saveTitle        string
	saveWhat         string
	saveWhy          string
	saveImpact       string
	saveTags         string
	saveCategory     string
	saveRelatedFiles string
	saveDetails      string
	saveSource       string
	saveProject      string
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a memory to the current session",
	Long: `Save a memory. A near-duplicate of an existing memory in the same
project is merged into it instead of creating a new entry.`,
	RunE: runSave,
}

func init() {
	saveCmd.Flags().StringVar(&saveTitle, "title", "", "title of the memory (required)")
	saveCmd.Flags().StringVar(&saveWhat, "what", "", "what happened or was learned (required)")
	saveCmd.Flags().StringVar(&saveWhy, "why", "", "why it matters")
	saveCmd.Flags().StringVar(&saveImpact, "impact", "", "impact or consequences")
	saveCmd.Flags().StringVar(&saveTags, "tags", "", "comma-separated tags")
	saveCmd.Flags().StringVar(&saveCategory, "category", "", "category (decision, pattern, bug, context, learning)")
	saveCmd.Flags().StringVar(&saveRelatedFiles, "related-files", "", "comma-separated file paths")
	saveCmd.Flags().StringVar(&saveDetails, "details", "", "extended details or context")
	saveCmd.Flags().StringVar(&saveSource, "source", "", "source of the memory")
	saveCmd.Flags().StringVar(&saveProject, "project", "", "project name (default is current directory name)")
	saveCmd.MarkFlagRequired("title")
	saveCmd.MarkFlagRequired("what")
	rootCmd.AddCommand(saveCmd)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runSave(cmd *cobra.Command, args []string) error {
	project := saveProject
	if project == "" {
		project = currentProject()
	}

	raw := memory.RawMemory{
		Title:        saveTitle,
		What:         saveWhat,
		Why:          saveWhy,
		Impact:       saveImpact,
		Tags:         splitCSV(saveTags),
		Category:     saveCategory,
		RelatedFiles: splitCSV(saveRelatedFiles),
		Details:      saveDetails,
		Source:       saveSource,
	}

	svc, _, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Save(cmd.Context(), raw, project)
	if err != nil {
		return err
	}

	if result.Action == "updated" {
		fmt.Printf("Updated: %s (id: %s)\n", saveTitle, result.ID)
	} else {
		fmt.Printf("Saved: %s (id: %s)\n", saveTitle, result.ID)
	}
	fmt.Printf("File: %s\n", result.FilePath)
	if result.Warning != "" {
		fmt.Printf("Warning: %s\n", result.Warning)
	}
	return nil
}
