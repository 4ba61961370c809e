// Package vm implements the stack machine that executes Eva bytecode: a
// fetch/decode/execute loop over call frames and an operand stack,
// gated allocation into a mark-sweep garbage-collected heap, and the
// host-facing API a program is run through.
package vm

import (
	"fmt"

	"github.com/dr8co/eva/code"
	"github.com/dr8co/eva/compiler"
	"github.com/dr8co/eva/evaerr"
	"github.com/dr8co/eva/gc"
	"github.com/dr8co/eva/global"
	"github.com/dr8co/eva/parser"
	"github.com/dr8co/eva/scope"
	"github.com/dr8co/eva/value"
)

// StackLimit is the fixed capacity of the operand stack.
const StackLimit = 512

// InitialGCThreshold is the BytesAllocated level that triggers the first
// collection; the VM grows it adaptively afterward.
const InitialGCThreshold = 1024

// VM executes compiled Eva programs: it owns its own heap, globals, and
// operand stack, so that a host running several programs concurrently
// gives each its own VM instance rather than sharing process-global
// state.
type VM struct {
	stack []value.Value
	sp    int
	bp    int
	ip    int
	fn    *value.Function

	frames []Frame

	heap        *value.Heap
	globals     *global.Table
	collector   *gc.Collector
	gcThreshold int

	permanentRoots []value.Object
	rooted         map[value.Object]bool
}

// New returns a VM with the standard globals already defined.
func New() *VM {
	v := &VM{
		stack:       make([]value.Value, StackLimit),
		heap:        value.NewHeap(),
		globals:     global.New(),
		collector:   gc.New(),
		gcThreshold: InitialGCThreshold,
		rooted:      map[value.Object]bool{},
	}
	v.setStandardGlobals()
	return v
}

// AddConst defines name as a constant Number global, a host hook meant to
// be called before Exec.
func (v *VM) AddConst(name string, n float64) {
	v.globals.AddConstant(name, n)
}

// AddNativeFunction defines name as a global bound to a host-provided
// Native function, a hook meant to be called before Exec.
func (v *VM) AddNativeFunction(name string, arity int, fn value.NativeFunc) {
	v.globals.AddNativeFunction(v.heap, name, arity, fn)
}

func (v *VM) setStandardGlobals() {
	v.AddNativeFunction("square", 1, func(caller value.NativeCaller, _ int) error {
		n := caller.Peek(0)
		if !n.IsNumber() {
			return evaerr.New(evaerr.Type, "square expects a Number argument")
		}
		caller.Push(value.Number(n.AsNumber() * n.AsNumber()))
		return nil
	})

	v.AddNativeFunction("sum", 2, func(caller value.NativeCaller, _ int) error {
		a, b := caller.Peek(1), caller.Peek(0)
		if !a.IsNumber() || !b.IsNumber() {
			return evaerr.New(evaerr.Type, "sum expects two Number arguments")
		}
		caller.Push(value.Number(a.AsNumber() + b.AsNumber()))
		return nil
	})

	v.AddConst("x", 10)
	v.AddConst("y", 20)

	v.AddNativeFunction("len", 1, func(caller value.NativeCaller, _ int) error {
		s := caller.Peek(0)
		if !s.IsString() {
			return evaerr.New(evaerr.Type, "len expects a String argument")
		}
		caller.Push(value.Number(float64(len(s.AsString()))))
		return nil
	})

	v.AddNativeFunction("puts", 1, func(caller value.NativeCaller, _ int) error {
		fmt.Println(caller.Peek(0).Inspect())
		caller.Push(value.Boolean(true))
		return nil
	})
}

// Exec compiles source as a fresh top-level program sharing this VM's
// heap and globals with anything run before it, then runs it to
// completion and returns the value of its final expression.
func (v *VM) Exec(source string) (value.Value, error) {
	expr, err := parser.Parse(source)
	if err != nil {
		return value.Value{}, err
	}

	analyzer := scope.NewAnalyzer()
	if err := analyzer.Analyze(expr); err != nil {
		return value.Value{}, err
	}

	comp := compiler.New(v.heap, v.globals, analyzer.ScopeInfo)
	mainFn, err := comp.Compile(expr)
	if err != nil {
		return value.Value{}, err
	}

	v.collectPermanentRoots(mainFn)

	v.fn = mainFn
	v.ip = 0
	v.bp = 0
	v.sp = 0
	v.frames = v.frames[:0]

	return v.run()
}

// collectPermanentRoots walks every constant reachable from a freshly
// compiled Function, registering previously-unseen Code, Function,
// Class, and String objects as permanent roots: per the data model,
// objects the compiler created are roots for the VM's entire lifetime,
// not just while their enclosing call is active.
func (v *VM) collectPermanentRoots(fn *value.Function) {
	var visitObject func(o value.Object)
	var visitCode func(co *value.Code)

	visitObject = func(o value.Object) {
		if o == nil || v.rooted[o] {
			return
		}
		v.rooted[o] = true
		v.permanentRoots = append(v.permanentRoots, o)

		switch obj := o.(type) {
		case *value.Code:
			visitCode(obj)
		case *value.Function:
			visitObject(obj.Code)
		case *value.Class:
			if obj.Super != nil {
				visitObject(obj.Super)
			}
			for _, pv := range obj.Properties {
				if pv.IsObject() {
					visitObject(pv.AsObject())
				}
			}
		}
	}

	visitCode = func(co *value.Code) {
		for _, cv := range co.Constants {
			if cv.IsObject() {
				visitObject(cv.AsObject())
			}
		}
	}

	visitObject(fn)
}

func (v *VM) gcRoots() []value.Object {
	roots := make([]value.Object, 0, v.sp+len(v.permanentRoots))
	for i := 0; i < v.sp; i++ {
		if v.stack[i].IsObject() && v.stack[i].AsObject() != nil {
			roots = append(roots, v.stack[i].AsObject())
		}
	}
	roots = append(roots, v.permanentRoots...)
	for idx := 0; idx < v.globals.Len(); idx++ {
		val := v.globals.Get(idx)
		if val.IsObject() && val.AsObject() != nil {
			roots = append(roots, val.AsObject())
		}
	}
	return roots
}

// maybeGC runs a collection whenever the heap's allocated bytes have
// crossed the current threshold, called immediately before any
// heap-allocating opcode (a String-producing ADD, MAKE_FUNCTION, NEW, or
// a SET_CELL that births a new Cell).
func (v *VM) maybeGC() {
	if v.heap.BytesAllocated < v.gcThreshold {
		return
	}
	v.collector.Collect(v.heap, v.gcRoots())
	for v.heap.BytesAllocated >= v.gcThreshold {
		v.gcThreshold *= 2
	}
}

func (v *VM) push(val value.Value) error {
	if v.sp >= StackLimit {
		return evaerr.New(evaerr.StackOverflow, "operand stack exceeded %d entries", StackLimit)
	}
	v.stack[v.sp] = val
	v.sp++
	return nil
}

func (v *VM) pop() (value.Value, error) {
	if v.sp == 0 {
		return value.Value{}, evaerr.New(evaerr.StackUnderflow, "pop on an empty stack")
	}
	v.sp--
	return v.stack[v.sp], nil
}

func (v *VM) popN(n int) error {
	if v.sp < n {
		return evaerr.New(evaerr.StackUnderflow, "cannot pop %d values from a stack of depth %d", n, v.sp)
	}
	v.sp -= n
	return nil
}

// Peek implements value.NativeCaller: offset 0 is the top of the stack.
func (v *VM) Peek(offset int) value.Value {
	idx := v.sp - 1 - offset
	if idx < 0 || idx >= v.sp {
		return value.Value{}
	}
	return v.stack[idx]
}

// Push implements value.NativeCaller.
func (v *VM) Push(val value.Value) {
	_ = v.push(val)
}

func (v *VM) run() (value.Value, error) {
	for {
		ins := v.fn.Code.Instructions
		if v.ip >= len(ins) {
			return value.Value{}, evaerr.New(evaerr.Opcode, "instruction pointer ran off the end of the code")
		}
		op := code.Opcode(ins[v.ip])

		switch op {
		case code.HALT:
			result, err := v.pop()
			if err != nil {
				return value.Value{}, err
			}
			return result, nil

		case code.CONST:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.push(v.fn.Code.Constants[idx]); err != nil {
				return value.Value{}, err
			}

		case code.ADD:
			v.ip++
			if err := v.execAdd(); err != nil {
				return value.Value{}, err
			}

		case code.SUB, code.MUL, code.DIV:
			v.ip++
			if err := v.execArith(op); err != nil {
				return value.Value{}, err
			}

		case code.COMPARE:
			cmpOp := code.Opcode(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.execCompare(cmpOp); err != nil {
				return value.Value{}, err
			}

		case code.JMP_IF_FALSE:
			addr := int(code.ReadUint16(ins[v.ip+1:]))
			v.ip += 3
			cond, err := v.pop()
			if err != nil {
				return value.Value{}, err
			}
			if !cond.Truthy() {
				v.ip = addr
			}

		case code.JMP:
			addr := int(code.ReadUint16(ins[v.ip+1:]))
			v.ip = addr

		case code.GET_GLOBAL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.push(v.globals.Get(idx)); err != nil {
				return value.Value{}, err
			}

		case code.SET_GLOBAL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			top, err := v.requireTop()
			if err != nil {
				return value.Value{}, err
			}
			v.globals.Set(idx, top)

		case code.POP:
			v.ip++
			if _, err := v.pop(); err != nil {
				return value.Value{}, err
			}

		case code.GET_LOCAL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.push(v.stack[v.bp+idx]); err != nil {
				return value.Value{}, err
			}

		case code.SET_LOCAL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			top, err := v.requireTop()
			if err != nil {
				return value.Value{}, err
			}
			v.stack[v.bp+idx] = top

		case code.SCOPE_EXIT:
			n := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.execScopeExit(n); err != nil {
				return value.Value{}, err
			}

		case code.CALL:
			argc := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.execCall(argc); err != nil {
				return value.Value{}, err
			}

		case code.RETURN:
			if err := v.execReturn(); err != nil {
				return value.Value{}, err
			}

		case code.GET_CELL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if idx >= len(v.fn.Cells) {
				return value.Value{}, evaerr.New(evaerr.Opcode, "cell index %d out of range", idx)
			}
			if err := v.push(v.fn.Cells[idx].Value); err != nil {
				return value.Value{}, err
			}

		case code.SET_CELL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			top, err := v.requireTop()
			if err != nil {
				return value.Value{}, err
			}
			if idx < len(v.fn.Cells) {
				v.fn.Cells[idx].Value = top
			} else {
				v.maybeGC()
				cell := v.heap.AllocCell(top)
				for len(v.fn.Cells) <= idx {
					v.fn.Cells = append(v.fn.Cells, nil)
				}
				v.fn.Cells[idx] = cell
			}

		case code.LOAD_CELL:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if idx >= len(v.fn.Cells) {
				return value.Value{}, evaerr.New(evaerr.Opcode, "cell index %d out of range", idx)
			}
			if err := v.push(value.Obj(v.fn.Cells[idx])); err != nil {
				return value.Value{}, err
			}

		case code.MAKE_FUNCTION:
			captureCount := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.execMakeFunction(captureCount); err != nil {
				return value.Value{}, err
			}

		case code.NEW:
			v.ip++
			if err := v.execNew(); err != nil {
				return value.Value{}, err
			}

		case code.GET_PROP:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.execGetProp(idx); err != nil {
				return value.Value{}, err
			}

		case code.SET_PROP:
			idx := int(code.ReadUint8(ins[v.ip+1:]))
			v.ip += 2
			if err := v.execSetProp(idx); err != nil {
				return value.Value{}, err
			}

		default:
			return value.Value{}, evaerr.New(evaerr.Opcode, "unknown opcode %d", op)
		}
	}
}

// requireTop returns the top of the stack without popping it, for SET
// opcodes that leave their value on the stack as an assignment result.
func (v *VM) requireTop() (value.Value, error) {
	if v.sp == 0 {
		return value.Value{}, evaerr.New(evaerr.StackUnderflow, "expected a value on top of the stack")
	}
	return v.stack[v.sp-1], nil
}

func (v *VM) execAdd() error {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	switch {
	case a.IsNumber() && b.IsNumber():
		return v.push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		v.maybeGC()
		s := v.heap.AllocString(a.AsString() + b.AsString())
		return v.push(value.Obj(s))
	default:
		return evaerr.New(evaerr.Type, "ADD requires two Numbers or two Strings")
	}
}

func (v *VM) execArith(op code.Opcode) error {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}
	if !a.IsNumber() || !b.IsNumber() {
		return evaerr.New(evaerr.Type, "arithmetic requires two Numbers")
	}
	switch op {
	case code.SUB:
		return v.push(value.Number(a.AsNumber() - b.AsNumber()))
	case code.MUL:
		return v.push(value.Number(a.AsNumber() * b.AsNumber()))
	case code.DIV:
		return v.push(value.Number(a.AsNumber() / b.AsNumber()))
	default:
		return evaerr.New(evaerr.Opcode, "not an arithmetic opcode: %d", op)
	}
}

func (v *VM) execCompare(op code.Opcode) error {
	b, err := v.pop()
	if err != nil {
		return err
	}
	a, err := v.pop()
	if err != nil {
		return err
	}

	var result bool
	switch {
	case a.IsNumber() && b.IsNumber():
		result = compareNumbers(op, a.AsNumber(), b.AsNumber())
	case a.IsString() && b.IsString():
		result = compareStrings(op, a.AsString(), b.AsString())
	default:
		return evaerr.New(evaerr.Type, "COMPARE requires two Numbers or two Strings")
	}
	return v.push(value.Boolean(result))
}

func compareNumbers(op code.Opcode, a, b float64) bool {
	switch op {
	case code.CompareLT:
		return a < b
	case code.CompareGT:
		return a > b
	case code.CompareEQ:
		return a == b
	case code.CompareLE:
		return a <= b
	case code.CompareGE:
		return a >= b
	case code.CompareNE:
		return a != b
	default:
		return false
	}
}

func compareStrings(op code.Opcode, a, b string) bool {
	switch op {
	case code.CompareLT:
		return a < b
	case code.CompareGT:
		return a > b
	case code.CompareEQ:
		return a == b
	case code.CompareLE:
		return a <= b
	case code.CompareGE:
		return a >= b
	case code.CompareNE:
		return a != b
	default:
		return false
	}
}

// execScopeExit pops the top (the block's result), discards n values
// beneath it, then pushes the saved result back.
func (v *VM) execScopeExit(n int) error {
	if v.sp < n+1 {
		return evaerr.New(evaerr.StackUnderflow, "SCOPE_EXIT %d on a stack of depth %d", n, v.sp)
	}
	result := v.stack[v.sp-1]
	v.sp -= n + 1
	return v.push(result)
}

func (v *VM) execCall(argc int) error {
	calleeIdx := v.sp - 1 - argc
	if calleeIdx < 0 {
		return evaerr.New(evaerr.StackUnderflow, "CALL %d on a stack too shallow to hold a callee", argc)
	}
	callee := v.stack[calleeIdx]
	if !callee.IsObject() {
		return evaerr.New(evaerr.Type, "call target is not callable")
	}

	switch fn := callee.AsObject().(type) {
	case *value.Function:
		v.frames = append(v.frames, Frame{ReturnIP: v.ip, BasePointer: v.bp, Fn: v.fn})
		if len(fn.Cells) > fn.Code.FreeCount {
			fn.Cells = fn.Cells[:fn.Code.FreeCount]
		}
		v.fn = fn
		v.bp = calleeIdx
		v.ip = 0
		return nil

	case *value.Native:
		if err := fn.Fn(v, argc); err != nil {
			return err
		}
		result, err := v.pop()
		if err != nil {
			return err
		}
		if err := v.popN(argc + 1); err != nil {
			return err
		}
		return v.push(result)

	default:
		return evaerr.New(evaerr.Type, "call target is not a Function or Native")
	}
}

func (v *VM) execReturn() error {
	if len(v.frames) == 0 {
		return evaerr.New(evaerr.Opcode, "RETURN with no active call frame")
	}
	frame := v.frames[len(v.frames)-1]
	v.frames = v.frames[:len(v.frames)-1]
	v.ip = frame.ReturnIP
	v.bp = frame.BasePointer
	v.fn = frame.Fn
	return nil
}

// execMakeFunction pops a Code constant, then pops captureCount Cells,
// reconstructing them in the order the compiler pushed them: the first
// pushed (deepest) cell becomes index 0.
func (v *VM) execMakeFunction(captureCount int) error {
	codeVal, err := v.pop()
	if err != nil {
		return err
	}
	co, ok := codeVal.AsObject().(*value.Code)
	if !ok {
		return evaerr.New(evaerr.Type, "MAKE_FUNCTION expects a Code constant")
	}

	cells := make([]*value.Cell, captureCount)
	for j := 0; j < captureCount; j++ {
		cellVal, err := v.pop()
		if err != nil {
			return err
		}
		cell, ok := cellVal.AsObject().(*value.Cell)
		if !ok {
			return evaerr.New(evaerr.Type, "MAKE_FUNCTION expects Cell operands")
		}
		cells[captureCount-1-j] = cell
	}

	v.maybeGC()
	fn := v.heap.AllocFunction(co, cells)
	return v.push(value.Obj(fn))
}

func (v *VM) execNew() error {
	clsVal, err := v.pop()
	if err != nil {
		return err
	}
	cls, ok := clsVal.AsObject().(*value.Class)
	if !ok {
		return evaerr.New(evaerr.Type, "new requires a Class")
	}

	v.maybeGC()
	inst := v.heap.AllocInstance(cls)

	ctor, ok := cls.GetProp("constructor")
	if !ok {
		return evaerr.New(evaerr.Property, "%s has no constructor", cls.Name)
	}
	if err := v.push(ctor); err != nil {
		return err
	}
	return v.push(value.Obj(inst))
}

func (v *VM) execGetProp(constIdx int) error {
	name := v.fn.Code.Constants[constIdx].AsString()
	objVal, err := v.pop()
	if err != nil {
		return err
	}
	if !objVal.IsObject() {
		return evaerr.New(evaerr.Type, "prop requires an instance or class")
	}

	var propVal value.Value
	var ok bool
	switch o := objVal.AsObject().(type) {
	case *value.Instance:
		propVal, ok = o.GetProp(name)
	case *value.Class:
		propVal, ok = o.GetProp(name)
	default:
		return evaerr.New(evaerr.Type, "prop requires an instance or class")
	}
	if !ok {
		return evaerr.New(evaerr.Property, "unresolved property %s", name)
	}
	return v.push(propVal)
}

// execSetProp supports instance property assignment only: assigning a
// property directly on a Class (as opposed to one of its instances) is
// fatal, matching the conservative behavior the data model calls for.
func (v *VM) execSetProp(constIdx int) error {
	name := v.fn.Code.Constants[constIdx].AsString()
	val, err := v.pop()
	if err != nil {
		return err
	}
	objVal, err := v.pop()
	if err != nil {
		return err
	}
	inst, ok := objVal.AsObject().(*value.Instance)
	if !ok {
		return evaerr.New(evaerr.Type, "cannot set property %s on a non-instance", name)
	}
	inst.SetProp(name, val)
	return v.push(val)
}
