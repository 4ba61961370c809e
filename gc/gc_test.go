package gc

import (
	"testing"

	"github.com/dr8co/eva/value"
)

func TestCollectSweepsUnreachable(t *testing.T) {
	heap := value.NewHeap()
	kept := heap.AllocString("kept")
	heap.AllocString("garbage")

	New().Collect(heap, []value.Object{kept})

	objs := heap.Objects()
	if len(objs) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(objs))
	}
	if objs[0] != value.Object(kept) {
		t.Fatalf("expected survivor to be the kept string, got %v", objs[0])
	}
}

func TestCollectFollowsCellAndFunctionEdges(t *testing.T) {
	heap := value.NewHeap()
	co := heap.AllocCode("f")
	cell := heap.AllocCell(value.Obj(heap.AllocString("captured")))
	fn := heap.AllocFunction(co, []*value.Cell{cell})

	heap.AllocString("unreferenced")

	New().Collect(heap, []value.Object{fn})

	objs := heap.Objects()
	if len(objs) != 4 { // fn, co, cell, captured string
		t.Fatalf("expected 4 survivors (fn, code, cell, captured string), got %d", len(objs))
	}
}

func TestCollectResetsMarkForNextCycle(t *testing.T) {
	heap := value.NewHeap()
	s := heap.AllocString("persistent")

	New().Collect(heap, []value.Object{s})
	if s.Marked() {
		t.Fatal("expected mark bit reset after sweep")
	}

	New().Collect(heap, []value.Object{s})
	if len(heap.Objects()) != 1 {
		t.Fatal("expected the persistent root to survive a second cycle")
	}
}
