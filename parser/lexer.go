// Package parser translates Prolog text into logic terms and sentences.
//
// The accepted syntax is a Prolog subset: facts, rules and queries built
// from atoms, integers, floats, variables, compound terms and lists, with
// the control operators ',', ';', '->', '\+', '=', '\=' and '!'.
// Line comments start with '%'.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rupertlssmith/lojix-sub004/runes"
)

const eof = '\x03'

type tokenType int

const (
	tokenError tokenType = iota
	tokenAtom
	tokenVar
	tokenInt
	tokenFloat
	tokenOpenParen
	tokenCloseParen
	tokenOpenBracket
	tokenCloseBracket
	tokenComma
	tokenBar
	tokenEnd // clause-terminating '.'
	tokenEOF
)

func (typ tokenType) String() string {
	switch typ {
	case tokenError:
		return "error"
	case tokenAtom:
		return "atom"
	case tokenVar:
		return "var"
	case tokenInt:
		return "int"
	case tokenFloat:
		return "float"
	case tokenOpenParen:
		return "("
	case tokenCloseParen:
		return ")"
	case tokenOpenBracket:
		return "["
	case tokenCloseBracket:
		return "]"
	case tokenComma:
		return ","
	case tokenBar:
		return "|"
	case tokenEnd:
		return "end"
	case tokenEOF:
		return "eof"
	}
	return fmt.Sprintf("tokenType(%d)", int(typ))
}

type token struct {
	typ       tokenType
	text      string
	line, col int
}

func (tok token) String() string {
	if tok.typ == tokenEOF {
		return "<eof>"
	}
	return fmt.Sprintf("%q (%v)", tok.text, tok.typ)
}

// SyntaxError represents malformed input at a given position. Lines and
// columns are 1-based.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (err *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", err.Line, err.Col, err.Msg)
}

// lexer walks the input text emitting tokens. Built as a state-function
// machine: each state consumes input and returns the next state, halting
// on nil.
type lexer struct {
	text      string
	start     int
	pos       int
	line, col int
	// line/col at the start of the current token.
	tokLine, tokCol int
	tokens          []token
	err             *SyntaxError
}

type lexState func(*lexer) lexState

func lexTokens(text string) ([]token, error) {
	l := &lexer{text: text, line: 1, col: 1, tokLine: 1, tokCol: 1}
	for state := lexAny; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.tokens, nil
}

func (l *lexer) cur() rune {
	if l.pos >= len(l.text) {
		return eof
	}
	ch, _ := runes.First(l.text[l.pos:])
	return ch
}

func (l *lexer) next() rune {
	ch := l.cur()
	if ch == eof {
		return eof
	}
	l.pos += len(string(ch))
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *lexer) acceptRun(pred func(rune) bool) bool {
	any := false
	for pred(l.cur()) {
		l.next()
		any = true
	}
	return any
}

func (l *lexer) emit(typ tokenType) {
	l.tokens = append(l.tokens, token{typ, l.text[l.start:l.pos], l.tokLine, l.tokCol})
	l.ignore()
}

func (l *lexer) emitText(typ tokenType, text string) {
	l.tokens = append(l.tokens, token{typ, text, l.tokLine, l.tokCol})
	l.ignore()
}

func (l *lexer) ignore() {
	l.start = l.pos
	l.tokLine, l.tokCol = l.line, l.col
}

func (l *lexer) errorf(msg string, args ...interface{}) lexState {
	l.err = &SyntaxError{l.line, l.col, fmt.Sprintf(msg, args...)}
	return nil
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdent(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func lexAny(l *lexer) lexState {
	ch := l.cur()
	switch {
	case ch == eof:
		l.emitText(tokenEOF, "")
		return nil
	case unicode.IsSpace(ch):
		l.acceptRun(unicode.IsSpace)
		l.ignore()
		return lexAny
	case ch == '%':
		for l.cur() != '\n' && l.cur() != eof {
			l.next()
		}
		l.ignore()
		return lexAny
	case ch == '(':
		l.next()
		l.emit(tokenOpenParen)
		return lexAny
	case ch == ')':
		l.next()
		l.emit(tokenCloseParen)
		return lexAny
	case ch == '[':
		l.next()
		l.emit(tokenOpenBracket)
		return lexAny
	case ch == ']':
		l.next()
		l.emit(tokenCloseBracket)
		return lexAny
	case ch == ',':
		l.next()
		l.emit(tokenComma)
		return lexAny
	case ch == '|':
		l.next()
		l.emit(tokenBar)
		return lexAny
	case ch == '!' || ch == ';':
		l.next()
		l.emit(tokenAtom)
		return lexAny
	case ch == '\'':
		return lexQuotedAtom
	case ch == '.':
		return lexDot
	case isDigit(ch):
		return lexNumber
	case ch == '_' || unicode.IsUpper(ch):
		l.acceptRun(isIdent)
		l.emit(tokenVar)
		return lexAny
	case unicode.IsLetter(ch):
		l.acceptRun(isIdent)
		l.emit(tokenAtom)
		return lexAny
	case ch == '-':
		// A minus immediately followed by a digit signs a number literal.
		if next, ok := runes.First(l.text[l.pos+1:]); ok && isDigit(next) {
			l.next()
			return lexNumber
		}
		l.acceptRun(runes.IsSymbolic)
		l.emit(tokenAtom)
		return lexAny
	case runes.IsSymbolic(ch):
		l.acceptRun(runes.IsSymbolic)
		l.emit(tokenAtom)
		return lexAny
	default:
		return l.errorf("unexpected character %q", ch)
	}
}

// A '.' ends a clause when followed by whitespace, a comment or eof;
// otherwise it starts a symbolic atom.
func lexDot(l *lexer) lexState {
	l.next()
	ch := l.cur()
	if ch == eof || ch == '%' || unicode.IsSpace(ch) {
		l.emit(tokenEnd)
		return lexAny
	}
	l.acceptRun(runes.IsSymbolic)
	l.emit(tokenAtom)
	return lexAny
}

func lexNumber(l *lexer) lexState {
	l.acceptRun(isDigit)
	isFloat := false
	// A '.' is part of the number only if followed by a digit, so that
	// "p(1)." still ends with a clause terminator.
	if l.cur() == '.' {
		rest := l.text[l.pos+1:]
		if ch, ok := runes.First(rest); ok && isDigit(ch) {
			l.next()
			l.acceptRun(isDigit)
			isFloat = true
		}
	}
	if l.cur() == 'e' || l.cur() == 'E' {
		rest := l.text[l.pos+1:]
		ch, ok := runes.First(rest)
		if ok && (isDigit(ch) || ch == '+' || ch == '-') {
			l.next()
			if l.cur() == '+' || l.cur() == '-' {
				l.next()
			}
			if !l.acceptRun(isDigit) {
				return l.errorf("malformed exponent")
			}
			isFloat = true
		}
	}
	if isFloat {
		l.emit(tokenFloat)
	} else {
		l.emit(tokenInt)
	}
	return lexAny
}

var atomEscapes = map[rune]rune{
	'n':  '\n',
	't':  '\t',
	'v':  '\v',
	'f':  '\f',
	'r':  '\r',
	'\'': '\'',
	'\\': '\\',
}

func lexQuotedAtom(l *lexer) lexState {
	l.next() // opening quote
	var b strings.Builder
	for {
		ch := l.next()
		switch ch {
		case eof, '\n':
			return l.errorf("unterminated quoted atom")
		case '\'':
			l.emitText(tokenAtom, b.String())
			return lexAny
		case '\\':
			esc, ok := atomEscapes[l.cur()]
			if !ok {
				return l.errorf("invalid escape character %q", l.cur())
			}
			l.next()
			b.WriteRune(esc)
		default:
			b.WriteRune(ch)
		}
	}
}
