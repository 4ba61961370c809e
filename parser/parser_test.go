package parser

import (
	"testing"

	"github.com/dr8co/eva/ast"
)

func TestParseWrapsInBegin(t *testing.T) {
	expr, err := Parse(`(+ 1 2)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, ok := expr.(*ast.List)
	if !ok {
		t.Fatalf("expected *ast.List, got %T", expr)
	}
	if tag, ok := ast.Tag(list); !ok || tag != "begin" {
		t.Fatalf("expected implicit begin wrapper, got tag %q", tag)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items (begin + form), got %d", len(list.Items))
	}

	form, ok := list.Items[1].(*ast.List)
	if !ok || len(form.Items) != 3 {
		t.Fatalf("expected (+ 1 2), got %v", list.Items[1])
	}
	if sym, ok := form.Items[0].(*ast.Symbol); !ok || sym.Name != "+" {
		t.Fatalf("expected + symbol, got %v", form.Items[0])
	}
}

func TestParseClassSyntax(t *testing.T) {
	src := `(class Point null (def constructor (self x y) (begin (set (prop self x) x) self)))`
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := expr.(*ast.List)
	classForm := list.Items[1].(*ast.List)
	if tag, ok := ast.Tag(classForm); !ok || tag != "class" {
		t.Fatalf("expected class form, got %v", classForm)
	}
}

func TestParseUnterminatedList(t *testing.T) {
	if _, err := Parse(`(+ 1 2`); err == nil {
		t.Fatal("expected error for unterminated list")
	}
}
