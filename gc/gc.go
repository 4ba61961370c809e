// Package gc implements the mark-sweep collector that reclaims unreachable
// heap objects between allocations.
//
// The collector owns no state of its own: each [Collector.Collect] call
// marks from a caller-supplied root set and sweeps a caller-supplied
// [value.Heap], so a host running several VMs each gets its own
// traceable heap rather than sharing one process-global registry.
package gc

import "github.com/dr8co/eva/value"

// Collector runs mark-sweep collections.
type Collector struct{}

// New returns a ready Collector.
func New() *Collector {
	return &Collector{}
}

// Collect marks every object reachable from roots, then sweeps heap:
// unmarked objects are dropped, and survivors have their mark bit reset
// for the next cycle.
func (c *Collector) Collect(heap *value.Heap, roots []value.Object) {
	for _, r := range roots {
		mark(r)
	}
	sweep(heap)
}

// mark performs a recursive DFS over an object's outgoing edges: a
// Function points to its Code and each of its Cells; a Cell points to
// its contained Value if that value is itself an Object; an Instance
// points to its Class and each Object-valued property; a Class points to
// its superclass (if any) and each Object-valued property. Strings and
// Code objects have no outgoing edges of their own.
func mark(o value.Object) {
	if o == nil || o.Marked() {
		return
	}
	o.Mark()
	for _, p := range o.Pointers() {
		mark(p)
	}
}

func sweep(heap *value.Heap) {
	survivors := make([]value.Object, 0, len(heap.Objects()))
	for _, o := range heap.Objects() {
		if !o.Marked() {
			continue
		}
		o.Unmark()
		survivors = append(survivors, o)
	}
	heap.SetObjects(survivors)
}
