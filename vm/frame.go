package vm

import "github.com/dr8co/eva/value"

// Frame is a saved call-stack record, restored by RETURN.
type Frame struct {
	ReturnIP    int
	BasePointer int
	Fn          *value.Function
}
