// Package value implements Eva's runtime data model: the tagged Value
// union and the closed set of heap Object kinds it can hold.
//
// Polymorphism here is tagged-variant dispatch, not an open subtype
// hierarchy: Value is one of {Number, Boolean, Object}, and Object is one
// of {String, Code, Native, Function, Cell, Class, Instance}. A type
// switch over the concrete Object implementations below is exhaustive.
package value

import "fmt"

// Kind is the tag of a [Value].
type Kind int

const (
	NumberKind Kind = iota
	BooleanKind
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case NumberKind:
		return "NUMBER"
	case BooleanKind:
		return "BOOLEAN"
	case ObjectKind:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// Value is the tagged union every VM stack slot, local, global, and
// constant holds: a Number, a Boolean, or a reference to a heap Object.
type Value struct {
	kind Kind
	num  float64
	b    bool
	obj  Object
}

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{kind: NumberKind, num: n} }

// Boolean constructs a boolean Value.
func Boolean(b bool) Value { return Value{kind: BooleanKind, b: b} }

// Obj wraps a heap Object in a Value.
func Obj(o Object) Value { return Value{kind: ObjectKind, obj: o} }

// Kind reports which alternative of the tagged union v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNumber reports whether v holds a Number.
func (v Value) IsNumber() bool { return v.kind == NumberKind }

// IsBoolean reports whether v holds a Boolean.
func (v Value) IsBoolean() bool { return v.kind == BooleanKind }

// IsObject reports whether v holds an Object reference.
func (v Value) IsObject() bool { return v.kind == ObjectKind }

// AsNumber returns the numeric payload of v. Callers must check IsNumber.
func (v Value) AsNumber() float64 { return v.num }

// AsBoolean returns the boolean payload of v. Callers must check IsBoolean.
func (v Value) AsBoolean() bool { return v.b }

// AsObject returns the object payload of v. Callers must check IsObject.
func (v Value) AsObject() Object { return v.obj }

// IsString reports whether v holds a String object.
func (v Value) IsString() bool {
	return v.kind == ObjectKind && v.obj != nil && v.obj.Type() == StringType
}

// AsString returns the underlying Go string of a String-object Value.
// Callers must check IsString.
func (v Value) AsString() string { return v.obj.(*String).Value }

// Truthy reports whether v counts as true in a conditional: only the
// Boolean false and nothing else is falsy — Numbers and Objects are
// always truthy, mirroring the reference implementation's test semantics.
func (v Value) Truthy() bool {
	if v.kind == BooleanKind {
		return v.b
	}
	return true
}

// Inspect renders v for REPL output and error messages.
func (v Value) Inspect() string {
	switch v.kind {
	case NumberKind:
		return fmt.Sprintf("%g", v.num)
	case BooleanKind:
		return fmt.Sprintf("%t", v.b)
	case ObjectKind:
		if v.obj == nil {
			return "null"
		}
		return v.obj.Inspect()
	default:
		return "<invalid>"
	}
}
