package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// categoryHeadings maps a category to its section heading in the
// session file.
var categoryHeadings = map[string]string{
	"decision": "Decisions",
	"pattern":  "Patterns",
	"bug":      "Bugs Fixed",
	"context":  "Context",
	"learning": "Learnings",
}

// WriteSessionMemory appends a human-readable rendering of the memory
// to the project's daily session file, creating the file with a header
// when absent. The file write happens before the database insert; the
// two are not transactionally linked.
func WriteSessionMemory(projectDir string, mem *Memory, date, details string) error {
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	path := filepath.Join(projectDir, date+"-session.md")

	var b strings.Builder
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(&b, "# Session %s — %s\n", date, mem.Project)
	}

	heading := categoryHeadings[mem.Category]
	if heading == "" {
		heading = "Notes"
	}

	fmt.Fprintf(&b, "\n## %s: %s\n\n", heading, mem.Title)
	fmt.Fprintf(&b, "<a id=%q></a>\n\n", mem.SectionAnchor)
	fmt.Fprintf(&b, "**What**: %s\n", mem.What)
	if mem.Why != "" {
		fmt.Fprintf(&b, "\n**Why**: %s\n", mem.Why)
	}
	if mem.Impact != "" {
		fmt.Fprintf(&b, "\n**Impact**: %s\n", mem.Impact)
	}
	if len(mem.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(mem.Tags, ", "))
	}
	if len(mem.RelatedFiles) > 0 {
		fmt.Fprintf(&b, "\nFiles: %s\n", strings.Join(mem.RelatedFiles, ", "))
	}
	if details != "" {
		fmt.Fprintf(&b, "\n<details>\n\n%s\n\n</details>\n", details)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
