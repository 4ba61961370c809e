package lexer

import (
	"testing"

	"github.com/dr8co/eva/token"
)

func TestNextToken(t *testing.T) {
	input := `(def square (x) (* x x)) // comment
"a\nstring" -3.5 <=`

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.LPAREN, "("},
		{token.SYMBOL, "def"},
		{token.SYMBOL, "square"},
		{token.LPAREN, "("},
		{token.SYMBOL, "x"},
		{token.RPAREN, ")"},
		{token.LPAREN, "("},
		{token.SYMBOL, "*"},
		{token.SYMBOL, "x"},
		{token.SYMBOL, "x"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
		{token.STRING, "a\nstring"},
		{token.NUMBER, "-3.5"},
		{token.SYMBOL, "<="},
		{token.EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - wrong type. expected=%q, got=%q (%q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - wrong literal. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"abc`)
	tok := l.NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %q", tok.Type)
	}
}
