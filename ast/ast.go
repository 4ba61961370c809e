// Package ast defines the syntax tree produced by the parser.
//
// Eva has exactly four kinds of expression: numbers, strings, symbols, and
// parenthesized lists of expressions. Everything else — variables, control
// flow, function and class declarations — is just a List whose first
// element is a distinguishing symbol ("if", "def", "class", ...),
// interpreted by the scope analyzer and compiler rather than the parser.
package ast

import "fmt"

// Expr is any Eva expression node. The concrete types below (all used as
// pointers) form a closed set; a type switch over *Number, *String,
// *Symbol, *List is exhaustive.
type Expr interface {
	exprNode()
	String() string
}

// Number is a numeric literal, e.g. 42 or -3.5.
type Number struct {
	Value float64
}

func (*Number) exprNode() {}

func (n *Number) String() string { return fmt.Sprintf("%g", n.Value) }

// String is a string literal, e.g. "hello".
type String struct {
	Value string
}

func (*String) exprNode() {}

func (s *String) String() string { return fmt.Sprintf("%q", s.Value) }

// Symbol is a bare identifier or operator, e.g. x, +, Point3D.
type Symbol struct {
	Name string
}

func (*Symbol) exprNode() {}

func (s *Symbol) String() string { return s.Name }

// List is a parenthesized sequence of expressions, e.g. (+ x 1).
//
// List is used as a map key (keyed by pointer identity) by the scope
// analyzer, which needs to attach a *scope.Scope to each block-introducing
// list without threading that association through the tree itself.
type List struct {
	Items []Expr
}

func (*List) exprNode() {}

func (l *List) String() string {
	s := "("
	for i, item := range l.Items {
		if i > 0 {
			s += " "
		}
		s += item.String()
	}
	return s + ")"
}

// Tag reports the leading symbol of a list, e.g. Tag on (if a b) returns
// ("if", true). It returns ("", false) for an empty list or a non-symbol
// head, which callers treat as an ordinary call expression.
func Tag(e Expr) (string, bool) {
	l, ok := e.(*List)
	if !ok || len(l.Items) == 0 {
		return "", false
	}
	sym, ok := l.Items[0].(*Symbol)
	if !ok {
		return "", false
	}
	return sym.Name, true
}

// IsTaggedList reports whether e is a list whose first element is the
// symbol tag.
func IsTaggedList(e Expr, tag string) bool {
	name, ok := Tag(e)
	return ok && name == tag
}
