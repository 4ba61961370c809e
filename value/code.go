package value

import (
	"fmt"

	"github.com/dr8co/eva/code"
)

// LocalVar records one entry of a Code object's locals table: a name and
// the Code's Depth at the moment it was declared.
type LocalVar struct {
	Name  string
	Depth int
}

// Code is a compiled function body: its instruction stream, constant
// pool, and the bookkeeping the scope analyzer and compiler need to
// resolve locals, cells, and free variables at that function's own
// nesting depth.
//
// CellNames holds free cells first, then the function's own cells;
// FreeCount says how many of the leading entries are free (captured from
// an enclosing scope) versus owned by this Code.
type Code struct {
	Header

	Name string
	// Arity is the number of declared parameters (not counting the
	// implicit callee slot at local 0).
	Arity int

	Constants    []Value
	Instructions code.Instructions

	Locals    []LocalVar
	CellNames []string
	FreeCount int

	// Depth is stamped on each newly defined local. The compiler never
	// changes it, so it stays 0; a scope exit's pop count comes from the
	// length of Locals before and after the block instead.
	Depth int
}

func (c *Code) Type() Type         { return CodeType }
func (c *Code) Pointers() []Object { return nil }
func (c *Code) Size() int          { return 64 + len(c.Instructions) + len(c.Constants)*8 }

func (c *Code) Inspect() string {
	return fmt.Sprintf("<code %s/%d>", c.Name, c.Arity)
}

// AddConstant appends v to the constant pool, deduplicating Numbers and
// Booleans by value and Strings by content so repeated literals share one
// slot. Any other object is always appended as a new entry.
func (c *Code) AddConstant(v Value) int {
	for i, existing := range c.Constants {
		if constantsEqual(existing, v) {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

func constantsEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case NumberKind:
		return a.num == b.num
	case BooleanKind:
		return a.b == b.b
	case ObjectKind:
		as, aok := a.obj.(*String)
		bs, bok := b.obj.(*String)
		return aok && bok && as.Value == bs.Value
	default:
		return false
	}
}

// AddLocal appends name to the locals table at the Code's current depth
// and returns its index.
func (c *Code) AddLocal(name string) int {
	c.Locals = append(c.Locals, LocalVar{Name: name, Depth: c.Depth})
	return len(c.Locals) - 1
}

// LookupLocal finds name in the locals table, scanning back to front so
// the innermost (most recent) declaration shadows outer ones. It returns
// -1 if name is not a local.
func (c *Code) LookupLocal(name string) int {
	for i := len(c.Locals) - 1; i >= 0; i-- {
		if c.Locals[i].Name == name {
			return i
		}
	}
	return -1
}

// LookupCell finds name in CellNames, again scanning back to front. It
// returns -1 if name is not a cell of this Code.
func (c *Code) LookupCell(name string) int {
	for i := len(c.CellNames) - 1; i >= 0; i-- {
		if c.CellNames[i] == name {
			return i
		}
	}
	return -1
}
