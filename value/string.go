package value

import "fmt"

// String is a heap-allocated immutable string.
type String struct {
	Header
	Value string
}

func (s *String) Type() Type          { return StringType }
func (s *String) Inspect() string     { return fmt.Sprintf("%q", s.Value) }
func (s *String) Pointers() []Object  { return nil }
func (s *String) Size() int           { return 16 + len(s.Value) }
