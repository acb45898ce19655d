package utils

import "unicode/utf8"

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen]) + "..."
}

// FirstLine returns s up to its first newline.
func FirstLine(s string) string {
	for i, c := range s {
		if c == '\n' || c == '\r' {
			return s[:i]
		}
	}
	return s
}
