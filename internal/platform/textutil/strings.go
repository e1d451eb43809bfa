package textutil

import (
	"strings"
	"unicode/utf8"
)

// NormalizeList trims entries, drops empties and removes case-insensitive duplicates while
// keeping the first spelling seen. The result is nil when nothing remains.
func NormalizeList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// SplitCSV splits a comma separated query value and normalises the parts.
func SplitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return NormalizeList(strings.Split(raw, ","))
}

// Truncate shortens s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
