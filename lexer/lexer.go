// Package lexer implements the lexical analyzer for Eva source text.
//
// The lexer turns a string into a stream of tokens: parentheses, numbers,
// strings, and symbols. Symbols cover both identifiers (x, square, Point3D)
// and operators (+, <=, ==) — Eva has no separate operator lexical class,
// since operators are ordinary symbols looked up like any other name.
package lexer

import (
	"strings"

	"github.com/dr8co/eva/token"
)

// Common tokens that are reused to reduce allocations.
var (
	tokenLParen = token.Token{Type: token.LPAREN, Literal: "("}
	tokenRParen = token.Token{Type: token.RPAREN, Literal: ")"}
	tokenEOF    = token.Token{Type: token.EOF, Literal: ""}
)

// Lexer turns Eva source text into a stream of tokens.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte

	illegal token.Token // reused for illegal-character tokens
}

// New creates a new Lexer over the given input string.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character from the input and advances position.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

// peekChar returns the next character without advancing the position.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken reads and returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	switch l.ch {
	case '(':
		l.readChar()
		return tokenLParen
	case ')':
		l.readChar()
		return tokenRParen
	case '"':
		lit, ok := l.readString()
		if !ok {
			l.illegal = token.Token{Type: token.ILLEGAL, Literal: "unterminated string"}
			return l.illegal
		}
		l.readChar() // past the closing quote
		return token.Token{Type: token.STRING, Literal: lit}
	case 0:
		return tokenEOF
	default:
		if isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())) {
			return token.Token{Type: token.NUMBER, Literal: l.readNumber()}
		}
		if isSymbolChar(l.ch) {
			return token.Token{Type: token.SYMBOL, Literal: l.readSymbol()}
		}
		l.illegal = token.Token{Type: token.ILLEGAL, Literal: string(l.ch)}
		l.readChar()
		return l.illegal
	}
}

// skipWhitespace skips whitespace and "//" line comments.
func (l *Lexer) skipWhitespace() {
	for {
		if l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
			continue
		}
		if l.ch == '/' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// readNumber reads a numeric literal, including a leading minus sign.
func (l *Lexer) readNumber() string {
	position := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

// readSymbol reads a run of symbol characters (an identifier or operator).
func (l *Lexer) readSymbol() string {
	position := l.position
	for isSymbolChar(l.ch) && !(l.ch == '/' && l.peekChar() == '/') {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readString reads the content of a double-quoted string, processing the
// usual backslash escapes, and reports whether it was properly terminated.
func (l *Lexer) readString() (string, bool) {
	var b strings.Builder
	l.readChar() // past the opening quote

	for {
		if l.ch == '"' {
			return b.String(), true
		}
		if l.ch == 0 {
			return b.String(), false
		}
		if l.ch == '\\' {
			l.readChar()
			if l.ch == 0 {
				return b.String(), false
			}
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(l.ch)
			}
		} else {
			b.WriteByte(l.ch)
		}
		l.readChar()
	}
}

func isDigit(ch byte) bool { return '0' <= ch && ch <= '9' }

// isSymbolChar reports whether ch can appear in a bare symbol: anything
// that isn't whitespace, a parenthesis, or a quote. readSymbol also stops
// at the start of a "//" comment.
func isSymbolChar(ch byte) bool {
	switch ch {
	case 0, ' ', '\t', '\n', '\r', '(', ')', '"':
		return false
	default:
		return true
	}
}
