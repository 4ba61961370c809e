package value

// NativeCaller is the narrow VM surface a native function needs: it reads
// its arguments via Peek and leaves its result with Push. Defining the
// interface here (rather than depending on the vm package directly) keeps
// value free of any dependency on vm, which itself depends on value.
type NativeCaller interface {
	Peek(offset int) Value
	Push(v Value)
}

// NativeFunc is a host-provided callable. By contract it must leave
// exactly one result on top of the caller's stack.
type NativeFunc func(vm NativeCaller, argc int) error

// Native wraps a host function so it can be called like any Eva function.
type Native struct {
	Header
	Name  string
	Arity int
	Fn    NativeFunc
}

func (n *Native) Type() Type         { return NativeType }
func (n *Native) Inspect() string    { return "<native " + n.Name + ">" }
func (n *Native) Pointers() []Object { return nil }
func (n *Native) Size() int          { return 32 }
