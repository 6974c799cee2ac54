// Package utils provides shared helpers for text and logging.
package utils

import "unicode/utf8"

// Prefix returns the first n characters of s. Characters are runes, so a
// multibyte sequence is never cut.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Truncate returns s cut to maxLen characters with "..." appended when it was cut.
// A non-positive maxLen returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return Prefix(s, maxLen) + "..."
}
