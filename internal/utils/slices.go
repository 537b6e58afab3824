package utils

import (
	"cmp"
	"slices"
	"strings"
)

// UniqueTrimmedStrings trims every element and drops blanks and repeats,
// keeping first-seen order.
func UniqueTrimmedStrings(input []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, s := range input {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; !exists {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
