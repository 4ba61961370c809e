package vm

import "testing"

func runNumber(t *testing.T, source string) float64 {
	t.Helper()
	v := New()
	result, err := v.Exec(source)
	if err != nil {
		t.Fatalf("Exec(%q) returned error: %v", source, err)
	}
	if !result.IsNumber() {
		t.Fatalf("Exec(%q) = %s, want a Number", source, result.Inspect())
	}
	return result.AsNumber()
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"(+ (* 2 3) (/ 8 2))", 10},
		{"(- 10 (* 2 3))", 4},
		{"(+ x y)", 30}, // standard globals x=10, y=20
		{"(square 4)", 16},
		{"(sum 3 4)", 7},
	}

	for _, tt := range tests {
		if got := runNumber(t, tt.source); got != tt.want {
			t.Errorf("%q = %g, want %g", tt.source, got, tt.want)
		}
	}
}

func TestIfBranching(t *testing.T) {
	if got := runNumber(t, "(if (> 3 2) 10 20)"); got != 10 {
		t.Errorf("true branch: got %g, want 10", got)
	}
	if got := runNumber(t, "(if (< 3 2) 10 20)"); got != 20 {
		t.Errorf("false branch: got %g, want 20", got)
	}
}

func TestWhileLoop(t *testing.T) {
	source := `
		(var i 0)
		(var count 0)
		(while (< i 5)
			(begin
				(set count (+ count 1))
				(set i (+ i 1))))
		count`

	if got := runNumber(t, source); got != 5 {
		t.Errorf("while loop count = %g, want 5", got)
	}
}

func TestForLoop(t *testing.T) {
	source := `
		(var count 0)
		(for (var i 0) (< i 10) (set i (+ i 1))
			(begin (set count (+ count 1))))
		count`

	if got := runNumber(t, source); got != 10 {
		t.Errorf("for loop count = %g, want 10", got)
	}
}

func TestRecursiveFactorial(t *testing.T) {
	source := `
		(def fact (n)
			(if (== n 0)
				1
				(* n (fact (- n 1)))))
		(fact 5)`

	if got := runNumber(t, source); got != 120 {
		t.Errorf("fact(5) = %g, want 120", got)
	}
}

func TestClosureCellsAreIndependentPerActivation(t *testing.T) {
	v := New()

	_, err := v.Exec(`
		(def createCounter ()
			(begin
				(var count 0)
				(lambda ()
					(begin (set count (+ count 1)) count))))
		(var fn1 (createCounter))
		(var fn2 (createCounter))
		0`)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	steps := []struct {
		call string
		want float64
	}{
		{"(fn1)", 1},
		{"(fn1)", 2},
		{"(fn2)", 1},
		{"(fn1)", 3},
		{"(fn2)", 2},
	}

	for _, st := range steps {
		result, err := v.Exec(st.call)
		if err != nil {
			t.Fatalf("Exec(%q) returned error: %v", st.call, err)
		}
		if !result.IsNumber() || result.AsNumber() != st.want {
			t.Errorf("Exec(%q) = %s, want Number(%g)", st.call, result.Inspect(), st.want)
		}
	}
}

func TestClassInheritanceSuperDispatch(t *testing.T) {
	source := `
		(class Point null
			(def constructor (self x y)
				(begin
					(set (prop self x) x)
					(set (prop self y) y)))
			(def calc (self)
				(+ (prop self x) (prop self y))))

		(class Point3D Point
			(def constructor (self x y z)
				(begin
					((prop (super Point3D) constructor) self x y)
					(set (prop self z) z)))
			(def calc (self)
				(+ ((prop (super Point3D) calc) self) (prop self z))))

		(var p (new Point3D 10 20 30))
		((prop p calc) p)`

	if got := runNumber(t, source); got != 60 {
		t.Errorf("Point3D.calc() = %g, want 60", got)
	}
}

func TestConstructorAlwaysYieldsInstanceRegardlessOfTrailingExpression(t *testing.T) {
	source := `
		(class Point null
			(def constructor (self x y)
				(begin
					(set (prop self x) x)
					(set (prop self y) y)))
			(def calc (self)
				(+ (prop self x) (prop self y))))

		(var p (new Point 10 20))
		((prop p calc) p)`

	if got := runNumber(t, source); got != 30 {
		t.Errorf("Point.calc() = %g, want 30", got)
	}
}

func TestGCKeepsHeapBoundedAcrossRepeatedConcatenation(t *testing.T) {
	v := New()
	v.gcThreshold = 64

	source := `
		(var s "a")
		(var i 0)
		(while (< i 50)
			(begin
				(set s (+ s "a"))
				(set i (+ i 1))))
		s`

	result, err := v.Exec(source)
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if !result.IsString() || len(result.AsString()) != 51 {
		t.Fatalf("final string = %s, want 51 a's", result.Inspect())
	}

	// Without collection every one of the 50 intermediate concatenations
	// (lengths 2..51) would still be reachable, well over 1000 bytes. A
	// working collector reclaims all but the live string and permanent
	// roots.
	if v.heap.BytesAllocated > 400 {
		t.Errorf("heap grew unbounded: BytesAllocated = %d", v.heap.BytesAllocated)
	}
}

func TestUndefinedGlobalReferenceIsAnError(t *testing.T) {
	v := New()
	if _, err := v.Exec("undefined_name"); err == nil {
		t.Fatal("expected a reference error for an undeclared name")
	}
}

func TestCallingANonFunctionIsATypeError(t *testing.T) {
	v := New()
	if _, err := v.Exec("(x 1 2)"); err == nil {
		t.Fatal("expected a type error calling a Number")
	}
}
