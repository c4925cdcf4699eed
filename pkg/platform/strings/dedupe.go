// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved. It returns nil
// when nothing survives.
func DedupeAndTrim(values []string) []string {
	var result []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// SplitList splits a comma-separated setting such as KAFKA_BROKERS or the
// exporter's --services flag.
//
// Example:
//
//	SplitList(" chat-bot, ,ai-service,chat-bot")
//	// Returns: []string{"chat-bot", "ai-service"}
func SplitList(raw string) []string {
	return DedupeAndTrim(strings.Split(raw, ","))
}
