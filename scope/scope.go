// Package scope implements Eva's single-pass scope and allocation
// analyzer: for every node that introduces a new scope (a block, a
// function, or the top level), it builds a Scope record, and for every
// variable reference it decides whether that variable lives in a global
// slot, a stack-local slot, or a heap-allocated Cell shared with a nested
// closure.
//
// The algorithm is a direct port of the reference compiler's scope
// analysis: resolution walks the parent chain starting from the
// referencing scope, and a reference that crosses a function boundary
// before it resolves forces the variable to be promoted to a Cell in its
// owning scope, with every intermediate function scope recording it as
// free so the capture can be threaded down to where it's needed.
package scope

import (
	"sort"

	"github.com/dr8co/eva/code"
	"github.com/dr8co/eva/evaerr"
)

// Kind is the category of a Scope.
type Kind int

const (
	Global Kind = iota
	Function
	Block
)

// AllocKind is the resolution verdict for a variable reference.
type AllocKind int

const (
	AllocGlobal AllocKind = iota
	AllocLocal
	AllocCell
)

// Scope is one node of the scope tree, built parent-first as the analyzer
// walks down the expression tree and consulted top-down by the compiler as it
// emits code for the same tree.
type Scope struct {
	Kind   Kind
	Parent *Scope

	allocInfo map[string]AllocKind
	free      map[string]bool
	cell      map[string]bool
}

// New creates a Scope of the given kind under parent (nil for the
// top-level scope, which is always Global).
func New(kind Kind, parent *Scope) *Scope {
	return &Scope{
		Kind:      kind,
		Parent:    parent,
		allocInfo: map[string]AllocKind{},
		free:      map[string]bool{},
		cell:      map[string]bool{},
	}
}

// AddLocal registers name as declared in this scope: a slot on the stack,
// or a global binding if this is the Global scope.
func (s *Scope) AddLocal(name string) {
	if s.Kind == Global {
		s.allocInfo[name] = AllocGlobal
	} else {
		s.allocInfo[name] = AllocLocal
	}
}

// addCell registers name as one of this scope's own heap cells, captured
// by some nested function.
func (s *Scope) addCell(name string) {
	s.cell[name] = true
	s.allocInfo[name] = AllocCell
}

// addFree registers name as captured from an enclosing scope, needing to
// be threaded down from there to wherever it's actually used.
func (s *Scope) addFree(name string) {
	s.free[name] = true
	s.allocInfo[name] = AllocCell
}

// MaybePromote resolves name by walking the scope chain from s and, if
// the reference crosses a function boundary before it resolves, promotes
// the variable to a heap Cell in its owning scope.
func (s *Scope) MaybePromote(name string) error {
	initAlloc := AllocLocal
	if s.Kind == Global {
		initAlloc = AllocGlobal
	}
	if existing, ok := s.allocInfo[name]; ok {
		if existing == AllocCell {
			return nil // already promoted and threaded through this scope
		}
		initAlloc = existing
	}

	owner, allocType, err := resolve(s, name, initAlloc)
	if err != nil {
		return err
	}

	s.allocInfo[name] = allocType
	if allocType == AllocCell {
		promote(s, name, owner)
	}
	return nil
}

// resolve walks the scope chain starting at s looking for name's
// declaring scope, threading allocType through the walk: a reference that
// crosses a Function boundary before it resolves becomes a Cell, unless
// its owning scope turns out to be Global.
func resolve(s *Scope, name string, allocType AllocKind) (*Scope, AllocKind, error) {
	if _, ok := s.allocInfo[name]; ok {
		return s, allocType, nil
	}

	if s.Kind == Function {
		allocType = AllocCell
	}

	if s.Parent == nil {
		return nil, 0, evaerr.New(evaerr.Reference, "%s is not defined", name)
	}

	if s.Parent.Kind == Global {
		allocType = AllocGlobal
	}

	return resolve(s.Parent, name, allocType)
}

// promote marks name as a cell in its owning scope and threads it through
// every scope between the reference at s and owner as a free variable.
func promote(s *Scope, name string, owner *Scope) {
	owner.addCell(name)

	for cur := s; cur != owner; cur = cur.Parent {
		cur.addFree(name)
	}
}

// NameGetterOp returns the opcode that should load name, once it has been
// resolved via MaybePromote or declared via AddLocal.
func (s *Scope) NameGetterOp(name string) (code.Opcode, error) {
	switch s.allocInfo[name] {
	case AllocGlobal:
		return code.GET_GLOBAL, nil
	case AllocLocal:
		return code.GET_LOCAL, nil
	case AllocCell:
		return code.GET_CELL, nil
	default:
		return 0, evaerr.New(evaerr.Reference, "%s has no allocation recorded", name)
	}
}

// NameSetterOp returns the opcode that should store into name.
func (s *Scope) NameSetterOp(name string) (code.Opcode, error) {
	switch s.allocInfo[name] {
	case AllocGlobal:
		return code.SET_GLOBAL, nil
	case AllocLocal:
		return code.SET_LOCAL, nil
	case AllocCell:
		return code.SET_CELL, nil
	default:
		return 0, evaerr.New(evaerr.Reference, "%s has no allocation recorded", name)
	}
}

// AllocOf reports the resolved allocation kind of name within s.
func (s *Scope) AllocOf(name string) (AllocKind, bool) {
	k, ok := s.allocInfo[name]
	return k, ok
}

// SortedFree returns this scope's free-variable names in sorted order, so
// that CellNames construction is deterministic across a Go map.
func (s *Scope) SortedFree() []string { return sortedKeys(s.free) }

// SortedCells returns this scope's own cell names in sorted order.
func (s *Scope) SortedCells() []string { return sortedKeys(s.cell) }

func sortedKeys(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
