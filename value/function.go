package value

// Function pairs a Code object with the Cells it captured at the moment
// of its creation. A Function's Cells length equals its Code's CellNames
// length while the function is active: the first FreeCount entries are
// bound from the enclosing frame at closure-creation time, the rest are
// this function's own cells, populated by SET_CELL in its prologue and
// body.
type Function struct {
	Header
	Code  *Code
	Cells []*Cell
}

func (f *Function) Type() Type      { return FunctionType }
func (f *Function) Inspect() string { return "<function " + f.Code.Name + ">" }
func (f *Function) Size() int       { return 24 + len(f.Cells)*8 }

func (f *Function) Pointers() []Object {
	pointers := make([]Object, 0, len(f.Cells)+1)
	pointers = append(pointers, f.Code)
	for _, c := range f.Cells {
		pointers = append(pointers, c)
	}
	return pointers
}
