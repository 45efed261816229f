// Package setup installs and removes EchoVault integration for
// supported coding agents: session-start hooks for Claude Code and
// Cursor, and an instruction section in AGENTS.md for Codex, which has
// no hook system.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const contextHookCommand = "echovault context --project"

// readJSON loads a JSON object, returning an empty map when the file is
// missing or unparseable so setup can always proceed.
func readJSON(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(encoded, '\n'), 0644)
}

// ClaudeCode installs a SessionStart hook into Claude Code
// settings.json that injects memory context at the start of every
// session.
func ClaudeCode(claudeHome string) (string, error) {
	settingsPath := filepath.Join(claudeHome, "settings.json")
	settings := readJSON(settingsPath)

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
		settings["hooks"] = hooks
	}

	groups, _ := hooks["SessionStart"].([]any)
	for _, g := range groups {
		if groupHasEchovaultHook(g) {
			return "Already installed", nil
		}
	}

	hooks["SessionStart"] = append(groups, map[string]any{
		"hooks": []any{
			map[string]any{"type": "command", "command": contextHookCommand},
		},
	})

	if err := writeJSON(settingsPath, settings); err != nil {
		return "", err
	}
	return "Installed: SessionStart hook", nil
}

// UninstallClaudeCode removes EchoVault hooks from Claude Code settings.
func UninstallClaudeCode(claudeHome string) (string, error) {
	settingsPath := filepath.Join(claudeHome, "settings.json")
	settings := readJSON(settingsPath)

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		return "Nothing to remove", nil
	}

	removed := false
	for event, raw := range hooks {
		groups, _ := raw.([]any)
		filtered := make([]any, 0, len(groups))
		for _, g := range groups {
			if groupHasEchovaultHook(g) {
				removed = true
				continue
			}
			filtered = append(filtered, g)
		}
		if len(filtered) == 0 {
			delete(hooks, event)
		} else {
			hooks[event] = filtered
		}
	}
	if len(hooks) == 0 {
		delete(settings, "hooks")
	}

	if !removed {
		return "Nothing to remove", nil
	}
	if err := writeJSON(settingsPath, settings); err != nil {
		return "", err
	}
	return "Removed: hooks", nil
}

// groupHasEchovaultHook reports whether a Claude Code hook group
// contains an echovault command.
func groupHasEchovaultHook(group any) bool {
	m, _ := group.(map[string]any)
	if m == nil {
		return false
	}
	entries, _ := m["hooks"].([]any)
	for _, e := range entries {
		h, _ := e.(map[string]any)
		if h == nil {
			continue
		}
		if cmd, _ := h["command"].(string); strings.Contains(cmd, "echovault") {
			return true
		}
	}
	return false
}

// Cursor installs a session-start hook into Cursor hooks.json.
func Cursor(cursorHome string) (string, error) {
	hooksPath := filepath.Join(cursorHome, "hooks.json")
	data := readJSON(hooksPath)

	hooks, _ := data["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
		data["hooks"] = hooks
	}

	entries, _ := hooks["sessionStart"].([]any)
	for _, e := range entries {
		h, _ := e.(map[string]any)
		if h == nil {
			continue
		}
		if cmd, _ := h["command"].(string); strings.Contains(cmd, "echovault") {
			return "Already installed", nil
		}
	}

	hooks["sessionStart"] = append(entries, map[string]any{"command": contextHookCommand})

	if err := writeJSON(hooksPath, data); err != nil {
		return "", err
	}
	return "Installed: sessionStart hook", nil
}

// UninstallCursor removes EchoVault hooks from Cursor hooks.json.
func UninstallCursor(cursorHome string) (string, error) {
	hooksPath := filepath.Join(cursorHome, "hooks.json")
	data := readJSON(hooksPath)

	hooks, _ := data["hooks"].(map[string]any)
	if hooks == nil {
		return "Nothing to remove", nil
	}

	removed := false
	for event, raw := range hooks {
		entries, _ := raw.([]any)
		filtered := make([]any, 0, len(entries))
		for _, e := range entries {
			h, _ := e.(map[string]any)
			if h != nil {
				if cmd, _ := h["command"].(string); strings.Contains(cmd, "echovault") {
					removed = true
					continue
				}
			}
			filtered = append(filtered, e)
		}
		if len(filtered) == 0 {
			delete(hooks, event)
		} else {
			hooks[event] = filtered
		}
	}
	if len(hooks) == 0 {
		delete(data, "hooks")
	}

	if !removed {
		return "Nothing to remove", nil
	}
	if err := writeJSON(hooksPath, data); err != nil {
		return "", err
	}
	return "Removed: hooks", nil
}

const codexSection = `
## EchoVault — Persistent Memory

You have persistent memory across sessions. Use it.

### Session start — MANDATORY

Before doing any work, retrieve context:

` + "```bash\nechovault context --project\n```" + `

Search for relevant memories:

` + "```bash\nechovault search \"<relevant terms>\"\n```" + `

When results show "Details: available", fetch them:

` + "```bash\nechovault details <memory-id>\n```" + `

### Session end — MANDATORY

Before finishing any task that involved changes, debugging, decisions, or learning, save a memory:

` + "```bash" + `
echovault save \
  --title "Short descriptive title" \
  --what "What happened or was decided" \
  --why "Reasoning behind it" \
  --impact "What changed as a result" \
  --tags "tag1,tag2,tag3" \
  --category "decision" \
  --related-files "path/to/file1,path/to/file2" \
  --source "codex" \
  --details "Full context. Be thorough."
` + "```" + `

Categories: ` + "`decision`, `bug`, `pattern`, `learning`, `context`" + `.

### Rules

- Retrieve before working. Save before finishing. No exceptions.
- Never include API keys, secrets, or credentials.
- Search before saving to avoid duplicates.
`

var codexSectionRe = regexp.MustCompile(`(?s)\n*## EchoVault[^\n]*\n.*?(\n## |$)`)

// Codex appends the memory instruction section to the global AGENTS.md.
// Codex has no hook mechanism, so instructions are the only integration
// point.
func Codex(codexHome string) (string, error) {
	agentsPath := filepath.Join(codexHome, "AGENTS.md")

	existing := ""
	if data, err := os.ReadFile(agentsPath); err == nil {
		existing = string(data)
	}

	if strings.Contains(existing, "## EchoVault") {
		return "AGENTS.md already contains EchoVault section", nil
	}

	if err := os.MkdirAll(codexHome, 0755); err != nil {
		return "", fmt.Errorf("failed to create codex directory: %w", err)
	}

	content := strings.TrimRight(existing, "\n") + "\n" + codexSection
	if err := os.WriteFile(agentsPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write AGENTS.md: %w", err)
	}

	return "Installed: AGENTS.md", nil
}

// UninstallCodex removes the EchoVault section from AGENTS.md.
func UninstallCodex(codexHome string) (string, error) {
	agentsPath := filepath.Join(codexHome, "AGENTS.md")

	data, err := os.ReadFile(agentsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "No AGENTS.md found", nil
		}
		return "", err
	}

	content := string(data)
	if !strings.Contains(content, "## EchoVault") {
		return "No EchoVault section found", nil
	}

	cleaned := codexSectionRe.ReplaceAllString(content, "$1")
	cleaned = strings.TrimSpace(cleaned) + "\n"

	if err := os.WriteFile(agentsPath, []byte(cleaned), 0644); err != nil {
		return "", fmt.Errorf("failed to write AGENTS.md: %w", err)
	}

	return "Removed: AGENTS.md", nil
}
