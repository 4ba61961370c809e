package scope

import (
	"github.com/dr8co/eva/ast"
)

// Analyzer walks a parsed expression once, building a Scope for every
// node that introduces one and recording, on each Scope, the allocation
// verdict for every name referenced within it.
type Analyzer struct {
	// ScopeInfo maps a scope-introducing List node (begin, def, lambda,
	// or class method) to the Scope built for it, keyed by the node's
	// own pointer identity so the compiler can look it back up on its
	// own walk of the same tree.
	ScopeInfo map[*ast.List]*Scope
}

// NewAnalyzer returns an Analyzer ready to run.
func NewAnalyzer() *Analyzer {
	return &Analyzer{ScopeInfo: map[*ast.List]*Scope{}}
}

// Analyze runs the scope pass over expr, which must be the top-level
// (begin ...) wrapper the parser produces.
func (a *Analyzer) Analyze(expr ast.Expr) error {
	return a.analyze(expr, nil)
}

func (a *Analyzer) analyze(expr ast.Expr, s *Scope) error {
	switch e := expr.(type) {
	case *ast.Symbol:
		if e.Name == "true" || e.Name == "false" || e.Name == "null" {
			return nil
		}
		return s.MaybePromote(e.Name)

	case *ast.Number, *ast.String:
		return nil

	case *ast.List:
		return a.analyzeList(e, s)

	default:
		return nil
	}
}

func (a *Analyzer) analyzeList(l *ast.List, s *Scope) error {
	if len(l.Items) == 0 {
		return nil
	}

	tag, isSymbolTag := ast.Tag(l)
	if !isSymbolTag {
		// A non-symbol head, e.g. ((lambda (x) ...) 2) or ((prop o m) o),
		// is itself an expression to analyze.
		return a.analyzeChildren(l.Items, s)
	}

	switch tag {
	case "begin":
		kind := Block
		if s == nil {
			kind = Global
		}
		newScope := New(kind, s)
		a.ScopeInfo[l] = newScope
		return a.analyzeChildren(l.Items[1:], newScope)

	case "var":
		// (var name init)
		name := l.Items[1].(*ast.Symbol).Name
		s.AddLocal(name)
		return a.analyze(l.Items[2], s)

	case "def":
		// (def name (params...) body)
		return a.analyzeFunction(l, s, l.Items[1].(*ast.Symbol).Name, l.Items[2].(*ast.List), l.Items[3], true)

	case "lambda":
		// (lambda (params...) body)
		return a.analyzeFunction(l, s, "", l.Items[1].(*ast.List), l.Items[2], false)

	case "class":
		return a.analyzeClass(l, s)

	case "prop":
		// (prop object name) — name is a property label, not a variable.
		return a.analyze(l.Items[1], s)

	case "super":
		// (super ClassName) resolves at compile time against the
		// compiler's own class registry; nothing to do here.
		return nil

	default:
		return a.analyzeChildren(l.Items[1:], s)
	}
}

func (a *Analyzer) analyzeChildren(items []ast.Expr, s *Scope) error {
	for _, item := range items {
		if err := a.analyze(item, s); err != nil {
			return err
		}
	}
	return nil
}

// analyzeFunction handles both def and lambda: a new Function scope is
// created, the function's own name (if any, for self-recursion) and its
// parameters are declared as locals in it, and the body is analyzed
// within that scope.
func (a *Analyzer) analyzeFunction(node *ast.List, outer *Scope, name string, params *ast.List, body ast.Expr, declareOuter bool) error {
	if declareOuter {
		outer.AddLocal(name)
	}

	newScope := New(Function, outer)
	a.ScopeInfo[node] = newScope

	if name != "" {
		newScope.AddLocal(name)
	}
	for _, p := range params.Items {
		newScope.AddLocal(p.(*ast.Symbol).Name)
	}

	return a.analyze(body, newScope)
}

// analyzeClass handles (class name super body...). The class name is
// declared in the enclosing scope exactly like a var binding; the
// superclass reference (when not the literal null) is an ordinary symbol
// reference, since the corpus's example programs always declare a
// superclass before referring to it. Each method body gets its own
// Function scope, as if it were an anonymous def, but the method name
// itself is not declared as a variable — it becomes a Class property
// instead, addressed by prop/set-prop, never by GET_LOCAL/GET_GLOBAL.
func (a *Analyzer) analyzeClass(l *ast.List, s *Scope) error {
	name := l.Items[1].(*ast.Symbol).Name
	s.AddLocal(name)

	if sym, ok := l.Items[2].(*ast.Symbol); !ok || sym.Name != "null" {
		if err := a.analyze(l.Items[2], s); err != nil {
			return err
		}
	}

	for _, member := range l.Items[3:] {
		methodDef := member.(*ast.List)
		// methodDef: (def methodName (params...) body)
		methodName := methodDef.Items[1].(*ast.Symbol).Name
		params := methodDef.Items[2].(*ast.List)
		body := methodDef.Items[3]

		if err := a.analyzeFunction(methodDef, s, methodName, params, body, false); err != nil {
			return err
		}
	}
	return nil
}
