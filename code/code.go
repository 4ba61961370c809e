// Package code defines Eva's bytecode instruction format: opcodes, their
// operand widths, and the helpers to assemble and disassemble them.
//
// This package knows nothing about values or objects — it operates purely
// on bytes, the same separation of concerns the reference bytecode
// compiler keeps between its instruction encoder and its object model.
package code

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instructions is a raw bytecode buffer.
type Instructions []byte

// Opcode identifies a single bytecode instruction.
type Opcode byte

// The complete instruction set. Every opcode is a single byte; operands are
// fixed-width per opcode, u8 throughout except the two jump instructions,
// which carry an absolute u16 address.
const (
	HALT Opcode = iota
	CONST
	ADD
	SUB
	MUL
	DIV
	COMPARE
	JMP_IF_FALSE
	JMP
	GET_GLOBAL
	SET_GLOBAL
	POP
	GET_LOCAL
	SET_LOCAL
	SCOPE_EXIT
	CALL
	RETURN
	GET_CELL
	SET_CELL
	LOAD_CELL
	MAKE_FUNCTION
	NEW
	GET_PROP
	SET_PROP
)

// Comparison operators encoded as the u8 operand of COMPARE.
const (
	CompareLT Opcode = iota
	CompareGT
	CompareEQ
	CompareLE
	CompareGE
	CompareNE
)

// Definition describes an opcode's mnemonic and the byte width of each of
// its operands, in order.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	HALT:          {"HALT", []int{}},
	CONST:         {"CONST", []int{1}},
	ADD:           {"ADD", []int{}},
	SUB:           {"SUB", []int{}},
	MUL:           {"MUL", []int{}},
	DIV:           {"DIV", []int{}},
	COMPARE:       {"COMPARE", []int{1}},
	JMP_IF_FALSE:  {"JMP_IF_FALSE", []int{2}},
	JMP:           {"JMP", []int{2}},
	GET_GLOBAL:    {"GET_GLOBAL", []int{1}},
	SET_GLOBAL:    {"SET_GLOBAL", []int{1}},
	POP:           {"POP", []int{}},
	GET_LOCAL:     {"GET_LOCAL", []int{1}},
	SET_LOCAL:     {"SET_LOCAL", []int{1}},
	SCOPE_EXIT:    {"SCOPE_EXIT", []int{1}},
	CALL:          {"CALL", []int{1}},
	RETURN:        {"RETURN", []int{}},
	GET_CELL:      {"GET_CELL", []int{1}},
	SET_CELL:      {"SET_CELL", []int{1}},
	LOAD_CELL:     {"LOAD_CELL", []int{1}},
	MAKE_FUNCTION: {"MAKE_FUNCTION", []int{1}},
	NEW:           {"NEW", []int{}},
	GET_PROP:      {"GET_PROP", []int{1}},
	SET_PROP:      {"SET_PROP", []int{1}},
}

// Lookup returns the Definition for op, or an error if op is unknown.
func Lookup(op Opcode) (*Definition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("code: opcode %d undefined", op)
	}
	return def, nil
}

// Make assembles a single instruction from an opcode and its operands,
// encoding each operand at the width the opcode's Definition specifies.
func Make(op Opcode, operands ...int) Instructions {
	def, ok := definitions[op]
	if !ok {
		return Instructions{}
	}

	instructionLen := 1
	for _, w := range def.OperandWidths {
		instructionLen += w
	}

	instruction := make(Instructions, instructionLen)
	instruction[0] = byte(op)

	offset := 1
	for i, o := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(o))
		case 1:
			instruction[offset] = byte(o)
		}
		offset += width
	}

	return instruction
}

// ReadUint16 reads a big-endian u16 from the start of ins.
func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

// ReadUint8 reads a single byte from the start of ins.
func ReadUint8(ins Instructions) uint8 {
	return uint8(ins[0])
}

// ReadOperands decodes the operands of a single instruction of type def,
// reading from the start of ins (the bytes just after the opcode),
// returning the decoded operands and how many bytes were consumed.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, width := range def.OperandWidths {
		switch width {
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		case 1:
			operands[i] = int(ReadUint8(ins[offset:]))
		}
		offset += width
	}

	return operands, offset
}

// String disassembles the instruction stream for debugging and REPL
// tracing.
func (ins Instructions) String() string {
	var out strings.Builder

	i := 0
	for i < len(ins) {
		def, err := Lookup(Opcode(ins[i]))
		if err != nil {
			fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}

		operands, read := ReadOperands(def, ins[i+1:])
		fmt.Fprintf(&out, "%04d %s\n", i, fmtInstruction(def, operands))

		i += 1 + read
	}

	return out.String()
}

func fmtInstruction(def *Definition, operands []int) string {
	operandCount := len(def.OperandWidths)
	if len(operands) != operandCount {
		return fmt.Sprintf("ERROR: operand len %d does not match defined %d", len(operands), operandCount)
	}

	switch operandCount {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	}

	return fmt.Sprintf("ERROR: unhandled operandCount for %s", def.Name)
}
