package memory

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Redactor scrubs secrets from memory text fields before they reach
// the store or the vault. The dedup probe and all indexed text
// therefore only ever see redacted content.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor with the default secret patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// API keys
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),

			// Bearer tokens
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// Passwords
			regexp.MustCompile(`password["\s:=]+[^\s"]+`),
			regexp.MustCompile(`pwd["\s:=]+[^\s"]+`),

			// Auth tokens
			regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`),

			// AWS keys
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

			// Generic secrets
			regexp.MustCompile(`secret["\s:=]+[^\s"]+`),
		},
	}
}

// AddPattern adds a custom redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces every pattern match with a placeholder.
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// LoadIgnoreFile appends user patterns from a .memoryignore file, one
// regex per line; blank lines and # comments are skipped. A missing
// file is not an error. Invalid patterns are logged and skipped so one
// bad line does not disable redaction.
func (r *Redactor) LoadIgnoreFile(path string, logger zerolog.Logger) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.AddPattern(line); err != nil {
			logger.Warn().Err(err).Str("pattern", line).Msg("Skipping invalid redaction pattern")
		}
	}
	return scanner.Err()
}
