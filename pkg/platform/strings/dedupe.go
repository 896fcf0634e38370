// Package strings holds small helpers for slug lists.
package strings

import (
	"slices"
	"strings"
)

// SplitList splits a comma separated list into lowercase, trimmed, unique
// entries. Order of first appearance is kept; blanks are dropped.
//
//	SplitList(" Hotel, billing,,HOTEL ") // []string{"hotel", "billing"}
func SplitList(raw string) []string {
	return Normalize(strings.Split(raw, ","))
}

// Normalize lowercases and trims values, dropping blanks and duplicates.
// The result is never nil.
func Normalize(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || slices.Contains(result, v) {
			continue
		}
		result = append(result, v)
	}
	return result
}

// Without returns values with every occurrence of drop removed.
func Without(values []string, drop string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v != drop {
			result = append(result, v)
		}
	}
	return result
}
