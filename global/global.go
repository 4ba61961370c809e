// Package global implements the VM's global variable table: an ordered
// list of (name, Value) bindings addressed both by name (for the compiler,
// which resolves a symbol to an index once) and by index (for GET_GLOBAL
// and SET_GLOBAL, which never do a name lookup at run time).
package global

import "github.com/dr8co/eva/value"

// Binding is one entry of the global table.
type Binding struct {
	Name  string
	Value value.Value
}

// Table is the VM's global variable store.
type Table struct {
	bindings []Binding
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Define idempotently appends a (name, Number(0)) binding if name is not
// already present, returning its index either way.
func (t *Table) Define(name string) int {
	if idx := t.GetIndex(name); idx != -1 {
		return idx
	}
	t.bindings = append(t.bindings, Binding{Name: name, Value: value.Number(0)})
	return len(t.bindings) - 1
}

// GetIndex returns the index of name, or -1 if it is not defined. Lookup
// is a reverse linear scan so the most recently defined binding of a
// shadowed name wins.
func (t *Table) GetIndex(name string) int {
	for i := len(t.bindings) - 1; i >= 0; i-- {
		if t.bindings[i].Name == name {
			return i
		}
	}
	return -1
}

// Exists reports whether name is defined.
func (t *Table) Exists(name string) bool {
	return t.GetIndex(name) != -1
}

// Len returns the number of bindings currently defined.
func (t *Table) Len() int {
	return len(t.bindings)
}

// Get returns the value at index.
func (t *Table) Get(index int) value.Value {
	return t.bindings[index].Value
}

// Set stores v at index.
func (t *Table) Set(index int, v value.Value) {
	t.bindings[index].Value = v
}

// AddConstant defines name as a constant Number binding and returns its
// index. It is a host hook used before exec, not a run-time opcode path.
func (t *Table) AddConstant(name string, n float64) int {
	idx := t.Define(name)
	t.Set(idx, value.Number(n))
	return idx
}

// AddNativeFunction defines name as a binding holding a Native object
// wrapping fn, allocated on h, and returns its index.
func (t *Table) AddNativeFunction(h Heap, name string, arity int, fn value.NativeFunc) int {
	idx := t.Define(name)
	native := h.AllocNative(name, arity, fn)
	t.Set(idx, value.Obj(native))
	return idx
}

// Heap is the minimal allocator surface AddNativeFunction needs; satisfied
// by *value.Heap.
type Heap interface {
	AllocNative(name string, arity int, fn value.NativeFunc) *value.Native
}
