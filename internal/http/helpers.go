package http

import (
	"strings"
	"unicode"
)

// sanitizeInput trims surrounding whitespace, including the ideographic space
// IMEs insert, and drops control and zero-width characters. Tab and newlines
// survive inside descriptions.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case r == '\u200b', r == '\ufeff':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimFunc(s, unicode.IsSpace)
}
