package global

import (
	"testing"

	"github.com/dr8co/eva/value"
)

func TestDefineIsIdempotent(t *testing.T) {
	tbl := New()
	i1 := tbl.Define("x")
	i2 := tbl.Define("x")
	if i1 != i2 {
		t.Fatalf("expected same index, got %d and %d", i1, i2)
	}
	if tbl.Get(i1).AsNumber() != 0 {
		t.Fatalf("expected default value 0, got %v", tbl.Get(i1))
	}
}

func TestGetSet(t *testing.T) {
	tbl := New()
	idx := tbl.Define("y")
	tbl.Set(idx, value.Number(42))
	if tbl.Get(idx).AsNumber() != 42 {
		t.Fatalf("expected 42, got %v", tbl.Get(idx))
	}
}

func TestGetIndexMissing(t *testing.T) {
	tbl := New()
	if tbl.GetIndex("nope") != -1 {
		t.Fatal("expected -1 for undefined name")
	}
	if tbl.Exists("nope") {
		t.Fatal("expected Exists to be false")
	}
}

func TestAddConstantAndNativeFunction(t *testing.T) {
	tbl := New()
	h := value.NewHeap()

	xi := tbl.AddConstant("x", 10)
	if tbl.Get(xi).AsNumber() != 10 {
		t.Fatalf("expected constant 10, got %v", tbl.Get(xi))
	}

	si := tbl.AddNativeFunction(h, "square", 1, func(vm value.NativeCaller, argc int) error {
		n := vm.Peek(0)
		vm.Push(value.Number(n.AsNumber() * n.AsNumber()))
		return nil
	})
	native, ok := tbl.Get(si).AsObject().(*value.Native)
	if !ok {
		t.Fatalf("expected native object, got %T", tbl.Get(si).AsObject())
	}
	if native.Name != "square" || native.Arity != 1 {
		t.Fatalf("unexpected native: %+v", native)
	}
}
