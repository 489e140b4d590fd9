package logic

import (
	"strings"
	"unicode"

	"github.com/rupertlssmith/lojix-sub004/runes"
)

func isIdent(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isIdents(text string) bool {
	for _, ch := range text {
		if !isIdent(ch) {
			return false
		}
	}
	return true
}

func isVarFirst(ch rune) bool {
	return ch == '_' || unicode.IsUpper(ch)
}

// IsVar returns whether text is a valid variable name.
func IsVar(text string) bool {
	ch, ok := runes.First(text)
	if !ok {
		return false
	}
	if !isVarFirst(ch) {
		return false
	}
	return isIdents(text)
}

// IsInt returns whether text is composed only of digits.
func IsInt(text string) bool {
	if text == "" {
		return false
	}
	for _, ch := range text {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

var escapeChars = map[rune]string{
	' ':  " ",
	'\n': "\\n",
	'\t': "\\t",
	'\v': "\\v",
	'\f': "\\f",
	'\r': "\\r",
	',':  ",",
	'(':  "(",
	')':  ")",
	'[':  "[",
	']':  "]",
	'\'': "\\'",
	'\\': "\\\\",
}

func isPlainAtom(text string) bool {
	ch, ok := runes.First(text)
	if !ok {
		return false
	}
	if unicode.IsLower(ch) && isIdents(text) {
		return true
	}
	// Symbolic atoms like '=', '\+' need no quoting either.
	for _, ch := range text {
		if !runes.IsSymbolic(ch) && ch != '!' && ch != ';' && ch != '.' {
			return false
		}
	}
	return true
}

// FormatAtom renders an atom name, quoting it when it could be mistaken
// for a variable, a number, or when it contains reserved characters.
func FormatAtom(text string) string {
	if text != "" && isPlainAtom(text) {
		return text
	}
	var b strings.Builder
	b.WriteRune('\'')
	for _, ch := range text {
		if exp, ok := escapeChars[ch]; ok && exp != string(ch) {
			b.WriteString(exp)
		} else {
			b.WriteRune(ch)
		}
	}
	b.WriteRune('\'')
	return b.String()
}
