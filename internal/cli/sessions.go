package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	sessionsLimit   int
	sessionsProject string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent session files in the vault",
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 10, "maximum number of sessions to show")
	sessionsCmd.Flags().StringVar(&sessionsProject, "project", "", "filter by project name")
	rootCmd.AddCommand(sessionsCmd)
}

type sessionEntry struct {
	project string
	date    string
}

func runSessions(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	vault := filepath.Join(home, "vault")

	var entries []sessionEntry

	projects, err := os.ReadDir(vault)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read vault: %w", err)
	}
	for _, proj := range projects {
		if !proj.IsDir() || strings.HasPrefix(proj.Name(), ".") {
			continue
		}
		if sessionsProject != "" && proj.Name() != sessionsProject {
			continue
		}

		files, err := os.ReadDir(filepath.Join(vault, proj.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if strings.HasSuffix(f.Name(), "-session.md") {
				entries = append(entries, sessionEntry{
					project: proj.Name(),
					date:    strings.TrimSuffix(f.Name(), "-session.md"),
				})
			}
		}
	}

	if len(entries) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].date != entries[j].date {
			return entries[i].date > entries[j].date
		}
		return entries[i].project < entries[j].project
	})
	if len(entries) > sessionsLimit {
		entries = entries[:sessionsLimit]
	}

	fmt.Println("\nSessions:")
	for _, e := range entries {
		fmt.Printf("  %s | %s\n", e.date, e.project)
	}
	return nil
}
