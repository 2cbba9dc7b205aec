package vars

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenPlus
)

type token struct {
	kind  tokenKind
	value string
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() (token, error) {
	l.skipSpaces()
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF}, nil
	}
	c := l.input[l.pos]
	switch {
	case c == '+':
		l.pos++
		return token{kind: tokenPlus, value: "+"}, nil
	case c == '\'' || c == '"':
		return l.lexString(c)
	case c >= '0' && c <= '9' || c == '.':
		return l.lexNumber()
	case isIdentStart(rune(c)):
		return l.lexIdent()
	default:
		return token{}, fmt.Errorf("%w: unexpected character %q", ErrExpression, string(c))
	}
}

func (l *lexer) skipSpaces() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
}

func (l *lexer) lexString(quote byte) (token, error) {
	end := strings.IndexByte(l.input[l.pos+1:], quote)
	if end < 0 {
		return token{}, fmt.Errorf("%w: unterminated string", ErrExpression)
	}
	start := l.pos + 1
	l.pos = start + end + 1
	return token{kind: tokenString, value: l.input[start : start+end]}, nil
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	seenDot := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '.' {
			if seenDot {
				return token{}, fmt.Errorf("%w: malformed number %q", ErrExpression, l.input[start:l.pos+1])
			}
			seenDot = true
			l.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	text := l.input[start:l.pos]
	if text == "." {
		return token{}, fmt.Errorf("%w: malformed number %q", ErrExpression, text)
	}
	return token{kind: tokenNumber, value: text}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
		l.pos++
	}
	return token{kind: tokenIdent, value: l.input[start:l.pos]}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
