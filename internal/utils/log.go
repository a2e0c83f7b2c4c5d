package utils

import "strings"

const ellipsis = "..."

// TruncateForLog flattens s onto one line and cuts it to limit runes. Runs of
// whitespace, newlines included, become a single space so previews and step
// notes never break a log line.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	flat := strings.Join(strings.Fields(s), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return strings.TrimRight(string(runes[:limit]), " ") + ellipsis
}
