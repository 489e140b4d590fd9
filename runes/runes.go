// Package runes contains some generally useful operations on runes.
package runes

import (
	"unicode"
	"unicode/utf8"
)

// First returns the first rune of s. If the string is empty or not proper UTF-8, returns false.
func First(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size < 2 {
		return 0, false
	}
	return r, true
}

// Single returns the single rune of s. If the string doesn't have exactly one rune, returns
// false.
func Single(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	return r, size == len(s)
}

// IsSymbolic returns whether r may compose an unquoted symbolic atom, like '=' or '\+'.
func IsSymbolic(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '\\', '^', '<', '>', '=', '~', '?', '@', '#', '&', '$', ':', '.':
		return true
	}
	return unicode.Is(unicode.Sm, r)
}
