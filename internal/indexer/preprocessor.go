package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted file text before ingestion. Control
// characters other than whitespace are dropped, whitespace runs become a
// single space, and the ends are trimmed.
func Preprocess(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// IsBlank reports whether text has no non-whitespace characters.
func IsBlank(text string) bool {
	return strings.TrimFunc(text, unicode.IsSpace) == ""
}
