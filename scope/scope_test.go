package scope

import (
	"testing"

	"github.com/dr8co/eva/parser"
)

func mustParse(t *testing.T, src string) *Analyzer {
	t.Helper()
	expr, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	a := NewAnalyzer()
	if err := a.Analyze(expr); err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	return a
}

func TestGlobalVarResolvesGlobal(t *testing.T) {
	a := mustParse(t, `(var x 10) (+ x 1)`)
	if len(a.ScopeInfo) != 1 {
		t.Fatalf("expected exactly 1 scope (the top-level begin), got %d", len(a.ScopeInfo))
	}
	for _, s := range a.ScopeInfo {
		if kind, ok := s.AllocOf("x"); !ok || kind != AllocGlobal {
			t.Fatalf("expected x to resolve as AllocGlobal, got %v (ok=%v)", kind, ok)
		}
	}
}

func TestClosureCellPromotion(t *testing.T) {
	a := mustParse(t, `
		(def makeCounter ()
			(begin
				(var count 0)
				(lambda () (begin (set count (+ count 1)) count))))`)

	var innerScope *Scope
	for node, s := range a.ScopeInfo {
		if s.Kind == Function && s.Parent != nil && s.Parent.Kind == Block {
			// the lambda's own function scope
			_ = node
			innerScope = s
		}
	}
	if innerScope == nil {
		t.Fatal("expected to find the lambda's function scope")
	}
	if kind, ok := innerScope.AllocOf("count"); !ok || kind != AllocCell {
		t.Fatalf("expected count to resolve as AllocCell in the lambda, got %v (ok=%v)", kind, ok)
	}
}

func TestUndeclaredReferenceIsError(t *testing.T) {
	expr, err := parser.Parse(`(+ undeclared 1)`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	a := NewAnalyzer()
	if err := a.Analyze(expr); err == nil {
		t.Fatal("expected a reference error for an undeclared name")
	}
}

func TestClassMethodDoesNotDeclareNameAsVariable(t *testing.T) {
	a := mustParse(t, `
		(class Point null
			(def constructor (self x y) (begin (set (prop self x) x) self)))`)

	for _, s := range a.ScopeInfo {
		if s.Kind != Global {
			continue
		}
		if _, ok := s.AllocOf("constructor"); ok {
			t.Fatal("expected method name not to be declared as a variable in the enclosing scope")
		}
		if _, ok := s.AllocOf("Point"); !ok {
			t.Fatal("expected class name to be declared in the enclosing scope")
		}
	}
}
