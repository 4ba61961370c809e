// Package evaerr defines the error type shared by every stage of the
// pipeline: scope analysis, compilation, and execution.
package evaerr

import "fmt"

// Kind classifies an [Error] so callers can distinguish, say, an unresolved
// name from a stack overflow without string-matching the message.
type Kind string

// The kinds of errors the analyzer, compiler, and VM report.
const (
	Reference      Kind = "reference"       // unresolved symbol
	StackOverflow  Kind = "stack overflow"   // operand stack exceeded its limit
	StackUnderflow Kind = "stack underflow"  // pop/peek past the bottom of the stack
	Type           Kind = "type"             // operand of the wrong kind
	Opcode         Kind = "opcode"           // unknown or malformed instruction
	Property       Kind = "property"         // missing or unsettable property
	Arity          Kind = "arity"            // wrong number of call arguments
)

// Error is a typed error produced by the Eva pipeline.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
