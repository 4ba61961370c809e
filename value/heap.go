package value

import "github.com/dr8co/eva/code"

// Heap is the per-VM traceable object registry and allocator. It is the
// sole gateway for creating String, Code, Function, Cell, Class,
// Instance, and Native objects: every allocation is registered here and
// its estimated cost added to BytesAllocated.
//
// Heap does not run the collector itself; the VM calls a gating routine
// before each heap-allocating opcode and asks the collector to sweep this
// Heap's Objects when BytesAllocated crosses its threshold.
type Heap struct {
	objects        []Object
	BytesAllocated int
}

// NewHeap returns an empty Heap.
func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) register(o Object) {
	h.objects = append(h.objects, o)
	h.BytesAllocated += o.Size()
}

// Objects returns every object currently registered, live or not — the
// collector's sweep phase filters this down to survivors.
func (h *Heap) Objects() []Object { return h.objects }

// SetObjects replaces the registry with the collector's sweep survivors
// and recomputes BytesAllocated from them.
func (h *Heap) SetObjects(objs []Object) {
	h.objects = objs
	total := 0
	for _, o := range objs {
		total += o.Size()
	}
	h.BytesAllocated = total
}

// AllocString allocates a new String object containing s.
func (h *Heap) AllocString(s string) *String {
	obj := &String{Value: s}
	h.register(obj)
	return obj
}

// AllocCode allocates a new, empty Code object for a function named name.
func (h *Heap) AllocCode(name string) *Code {
	obj := &Code{Name: name, Instructions: code.Instructions{}}
	h.register(obj)
	return obj
}

// AllocNative allocates a Native wrapping fn.
func (h *Heap) AllocNative(name string, arity int, fn NativeFunc) *Native {
	obj := &Native{Name: name, Arity: arity, Fn: fn}
	h.register(obj)
	return obj
}

// AllocFunction allocates a Function over co, capturing cells.
func (h *Heap) AllocFunction(co *Code, cells []*Cell) *Function {
	obj := &Function{Code: co, Cells: cells}
	h.register(obj)
	return obj
}

// AllocCell allocates a new Cell holding the initial value v.
func (h *Heap) AllocCell(v Value) *Cell {
	obj := &Cell{Value: v}
	h.register(obj)
	return obj
}

// AllocClass allocates a new Class named name with the given (possibly
// nil) superclass.
func (h *Heap) AllocClass(name string, super *Class) *Class {
	obj := NewClass(name, super)
	h.register(obj)
	return obj
}

// AllocInstance allocates a new Instance of cls.
func (h *Heap) AllocInstance(cls *Class) *Instance {
	obj := NewInstance(cls)
	h.register(obj)
	return obj
}
