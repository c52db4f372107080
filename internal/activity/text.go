package activity

import (
	"maps"
	"slices"
	"strings"
	"unicode"
)

// sortedKeys returns map keys in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// words splits lowercased text into letter/digit tokens.
func words(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// containsWord reports whether a single-word or multi-word phrase occurs on word boundaries.
func containsWord(lower, phrase string) bool {
	tokens := words(lower)
	want := words(strings.ToLower(phrase))
	if len(want) == 0 || len(tokens) < len(want) {
		return false
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(want)], want) {
			return true
		}
	}
	return false
}
