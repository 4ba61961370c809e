// Package parser builds an [ast.Expr] tree from Eva source text.
//
// The grammar is the usual Lisp s-expression grammar: a program is an
// implicit sequence of top-level forms, which the parser wraps in a single
// (begin ...) list so the rest of the pipeline only ever deals with one
// expression.
package parser

import (
	"fmt"

	"github.com/dr8co/eva/ast"
	"github.com/dr8co/eva/lexer"
	"github.com/dr8co/eva/token"
)

// Parser turns a token stream into an ast.Expr tree.
type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	err error
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	p.next()
	return p
}

// Parse parses src as a sequence of top-level forms wrapped in an implicit
// (begin ...), matching the REPL/file semantics described for exec.
func Parse(src string) (ast.Expr, error) {
	p := New(lexer.New(src))

	items := []ast.Expr{&ast.Symbol{Name: "begin"}}
	for p.cur.Type != token.EOF {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &ast.List{Items: items}, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	switch p.cur.Type {
	case token.LPAREN:
		return p.parseList()
	case token.NUMBER:
		return p.parseNumber()
	case token.STRING:
		s := &ast.String{Value: p.cur.Literal}
		p.next()
		return s, nil
	case token.SYMBOL:
		s := &ast.Symbol{Name: p.cur.Literal}
		p.next()
		return s, nil
	case token.ILLEGAL:
		return nil, fmt.Errorf("parser: illegal token %q", p.cur.Literal)
	case token.EOF:
		return nil, fmt.Errorf("parser: unexpected end of input")
	default:
		return nil, fmt.Errorf("parser: unexpected token %q", p.cur.Literal)
	}
}

func (p *Parser) parseNumber() (ast.Expr, error) {
	var v float64
	if _, err := fmt.Sscanf(p.cur.Literal, "%g", &v); err != nil {
		return nil, fmt.Errorf("parser: invalid number %q: %w", p.cur.Literal, err)
	}
	p.next()
	return &ast.Number{Value: v}, nil
}

func (p *Parser) parseList() (ast.Expr, error) {
	p.next() // consume '('

	var items []ast.Expr
	for p.cur.Type != token.RPAREN {
		if p.cur.Type == token.EOF {
			return nil, fmt.Errorf("parser: unterminated list")
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, expr)
	}
	p.next() // consume ')'
	return &ast.List{Items: items}, nil
}
