package value

// Cell is a single mutable Value slot, heap-allocated so two or more
// Functions can share one variable by reference. A Cell is born on first
// write to a variable the scope analyzer promoted, and is freed by the
// collector once no root transitively reaches it.
type Cell struct {
	Header
	Value Value
}

func (c *Cell) Type() Type      { return CellType }
func (c *Cell) Inspect() string { return "<cell " + c.Value.Inspect() + ">" }
func (c *Cell) Size() int       { return 24 }

func (c *Cell) Pointers() []Object {
	if c.Value.IsObject() && c.Value.AsObject() != nil {
		return []Object{c.Value.AsObject()}
	}
	return nil
}
