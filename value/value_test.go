package value

import "testing"

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Boolean(false), false},
		{Boolean(true), true},
		{Number(0), true},
		{Number(42), true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("Truthy(%s) = %v, want %v", tt.v.Inspect(), got, tt.want)
		}
	}
}

func TestCodeAddConstantDeduplicates(t *testing.T) {
	c := &Code{}
	i1 := c.AddConstant(Number(10))
	i2 := c.AddConstant(Number(10))
	if i1 != i2 {
		t.Fatalf("expected deduplicated index, got %d and %d", i1, i2)
	}

	h := NewHeap()
	s1 := h.AllocString("hi")
	s2 := h.AllocString("hi")
	j1 := c.AddConstant(Obj(s1))
	j2 := c.AddConstant(Obj(s2))
	if j1 != j2 {
		t.Fatalf("expected string constants to dedup by value, got %d and %d", j1, j2)
	}
}

func TestCodeLookupLocalScansBackward(t *testing.T) {
	c := &Code{}
	c.AddLocal("x")
	c.AddLocal("y")
	c.AddLocal("x")

	if idx := c.LookupLocal("x"); idx != 2 {
		t.Fatalf("expected innermost x at index 2, got %d", idx)
	}
	if idx := c.LookupLocal("z"); idx != -1 {
		t.Fatalf("expected -1 for missing local, got %d", idx)
	}
}

func TestClassGetPropWalksSuperchain(t *testing.T) {
	h := NewHeap()
	base := h.AllocClass("Base", nil)
	base.Properties["calc"] = Number(1)

	derived := h.AllocClass("Derived", base)
	derived.Properties["extra"] = Number(2)

	if v, ok := derived.GetProp("calc"); !ok || v.AsNumber() != 1 {
		t.Fatalf("expected inherited calc=1, got %v ok=%v", v, ok)
	}
	if v, ok := derived.GetProp("extra"); !ok || v.AsNumber() != 2 {
		t.Fatalf("expected own extra=2, got %v ok=%v", v, ok)
	}
	if _, ok := derived.GetProp("missing"); ok {
		t.Fatal("expected missing property to be absent")
	}
}

func TestInstancePropertyShadowsClass(t *testing.T) {
	h := NewHeap()
	cls := h.AllocClass("Point", nil)
	cls.Properties["x"] = Number(0)

	inst := h.AllocInstance(cls)
	inst.SetProp("x", Number(10))

	if v, ok := inst.GetProp("x"); !ok || v.AsNumber() != 10 {
		t.Fatalf("expected instance property to shadow class, got %v", v)
	}
}

func TestHeapAllocationTracksBytes(t *testing.T) {
	h := NewHeap()
	before := h.BytesAllocated
	h.AllocString("hello")
	if h.BytesAllocated <= before {
		t.Fatal("expected BytesAllocated to increase after allocation")
	}
	if len(h.Objects()) != 1 {
		t.Fatalf("expected 1 registered object, got %d", len(h.Objects()))
	}
}
