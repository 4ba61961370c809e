// Package compiler lowers a parsed, scope-analyzed expression tree into
// per-function bytecode [value.Code] objects.
//
// The compiler makes a second pass over the same tree the scope analyzer
// already walked, consulting the Scope the analyzer built for every
// block, function, lambda, or class method to decide which opcode loads
// or stores a given name. It never re-derives allocation decisions itself
// — that is entirely the analyzer's job — it only translates them into
// bytecode.
package compiler

import (
	"github.com/dr8co/eva/ast"
	"github.com/dr8co/eva/code"
	"github.com/dr8co/eva/evaerr"
	"github.com/dr8co/eva/global"
	"github.com/dr8co/eva/scope"
	"github.com/dr8co/eva/value"
)

// comparisonOps maps an Eva comparison symbol to the operand COMPARE
// expects.
var comparisonOps = map[string]code.Opcode{
	"<":  code.CompareLT,
	">":  code.CompareGT,
	"==": code.CompareEQ,
	"<=": code.CompareLE,
	">=": code.CompareGE,
	"!=": code.CompareNE,
}

// Compiler turns a scope-analyzed expression tree into a main [value.Function].
type Compiler struct {
	heap    *value.Heap
	globals *global.Table

	scopeInfo map[*ast.List]*scope.Scope

	// classesByName resolves (super ClassName) at compile time: a class
	// must register itself here before its own method bodies are
	// compiled, since those bodies may reference their own superclass
	// by name before the enclosing class statement's global binding
	// exists.
	classesByName map[string]*value.Class

	current *value.Code
}

// New creates a Compiler over heap and globals, using scopeInfo (produced
// by [scope.Analyzer.Analyze]) to resolve every name reference.
func New(heap *value.Heap, globals *global.Table, scopeInfo map[*ast.List]*scope.Scope) *Compiler {
	return &Compiler{
		heap:          heap,
		globals:       globals,
		scopeInfo:     scopeInfo,
		classesByName: map[string]*value.Class{},
	}
}

// Compile lowers the top-level (begin ...) expression the parser produces
// into a main Function with no captured cells, ready for the VM to run.
func (c *Compiler) Compile(expr ast.Expr) (*value.Function, error) {
	top, ok := expr.(*ast.List)
	if !ok {
		return nil, evaerr.New(evaerr.Opcode, "top-level expression must be a list")
	}
	topScope, ok := c.scopeInfo[top]
	if !ok {
		return nil, evaerr.New(evaerr.Opcode, "missing scope info for top-level expression")
	}

	c.current = c.heap.AllocCode("main")

	if err := c.genBeginChildren(top.Items[1:], topScope); err != nil {
		return nil, err
	}
	n := len(c.current.Locals)
	c.emit(code.SCOPE_EXIT, n)
	c.emit(code.HALT)

	return c.heap.AllocFunction(c.current, nil), nil
}

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	pos := len(c.current.Instructions)
	c.current.Instructions = append(c.current.Instructions, code.Make(op, operands...)...)
	return pos
}

// patchJump overwrites the u16 operand of the jump instruction at pos
// with the current end of the instruction stream.
func (c *Compiler) patchJump(pos int) {
	addr := len(c.current.Instructions)
	ins := code.Make(code.JMP, addr) // JMP/JMP_IF_FALSE share the u16 operand layout
	copy(c.current.Instructions[pos+1:], ins[1:])
}

// gen lowers a single expression against scope s, the nearest enclosing
// scope-introducing node's Scope record.
func (c *Compiler) gen(expr ast.Expr, s *scope.Scope) error {
	switch e := expr.(type) {
	case *ast.Number:
		idx := c.current.AddConstant(value.Number(e.Value))
		c.emit(code.CONST, idx)
		return nil

	case *ast.String:
		idx := c.current.AddConstant(value.Obj(c.heap.AllocString(e.Value)))
		c.emit(code.CONST, idx)
		return nil

	case *ast.Symbol:
		return c.genSymbol(e, s)

	case *ast.List:
		return c.genList(e, s)

	default:
		return evaerr.New(evaerr.Opcode, "cannot compile expression of type %T", expr)
	}
}

func (c *Compiler) genSymbol(sym *ast.Symbol, s *scope.Scope) error {
	switch sym.Name {
	case "true":
		idx := c.current.AddConstant(value.Boolean(true))
		c.emit(code.CONST, idx)
		return nil
	case "false", "null":
		idx := c.current.AddConstant(value.Boolean(false))
		c.emit(code.CONST, idx)
		return nil
	}

	op, err := s.NameGetterOp(sym.Name)
	if err != nil {
		return err
	}

	switch op {
	case code.GET_LOCAL:
		idx := c.current.LookupLocal(sym.Name)
		if idx == -1 {
			return evaerr.New(evaerr.Reference, "%s is not a local in the current function", sym.Name)
		}
		c.emit(code.GET_LOCAL, idx)
	case code.GET_CELL:
		idx := c.current.LookupCell(sym.Name)
		if idx == -1 {
			return evaerr.New(evaerr.Reference, "%s is not a cell in the current function", sym.Name)
		}
		c.emit(code.GET_CELL, idx)
	default: // GET_GLOBAL
		idx := c.globals.GetIndex(sym.Name)
		if idx == -1 {
			return evaerr.New(evaerr.Reference, "%s does not exist, could not get its value", sym.Name)
		}
		c.emit(code.GET_GLOBAL, idx)
	}
	return nil
}

func (c *Compiler) genList(l *ast.List, s *scope.Scope) error {
	if len(l.Items) == 0 {
		return evaerr.New(evaerr.Opcode, "empty list has no meaning")
	}

	if tag, ok := ast.Tag(l); ok {
		if op, isArith := arithmeticOps[tag]; isArith {
			return c.genBinary(l, s, op)
		}
		if op, isCmp := comparisonOps[tag]; isCmp {
			return c.genCompare(l, s, op)
		}

		switch tag {
		case "begin":
			return c.genBegin(l, s)
		case "if":
			return c.genIf(l, s)
		case "while":
			return c.genWhile(l, s)
		case "for":
			return c.genFor(l, s)
		case "var":
			return c.genVar(l, s)
		case "set":
			return c.genSet(l, s)
		case "def":
			return c.genDef(l, s)
		case "lambda":
			return c.genLambda(l, s, "")
		case "class":
			return c.genClass(l, s)
		case "new":
			return c.genNew(l, s)
		case "prop":
			return c.genProp(l, s)
		case "super":
			return c.genSuper(l, s)
		}
	}

	return c.genCall(l, s)
}

var arithmeticOps = map[string]code.Opcode{
	"+": code.ADD,
	"-": code.SUB,
	"*": code.MUL,
	"/": code.DIV,
}

func (c *Compiler) genBinary(l *ast.List, s *scope.Scope, op code.Opcode) error {
	if err := c.gen(l.Items[1], s); err != nil {
		return err
	}
	if err := c.gen(l.Items[2], s); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

func (c *Compiler) genCompare(l *ast.List, s *scope.Scope, op code.Opcode) error {
	if err := c.gen(l.Items[1], s); err != nil {
		return err
	}
	if err := c.gen(l.Items[2], s); err != nil {
		return err
	}
	c.emit(code.COMPARE, int(op))
	return nil
}

func (c *Compiler) genIf(l *ast.List, s *scope.Scope) error {
	if err := c.gen(l.Items[1], s); err != nil {
		return err
	}
	jmpFalsePos := c.emit(code.JMP_IF_FALSE, 0)

	if err := c.gen(l.Items[2], s); err != nil {
		return err
	}
	jmpEndPos := c.emit(code.JMP, 0)

	c.patchJump(jmpFalsePos)

	if len(l.Items) > 3 {
		if err := c.gen(l.Items[3], s); err != nil {
			return err
		}
	}

	c.patchJump(jmpEndPos)
	return nil
}

// genWhile and genFor both leave a placeholder Boolean(false) result on
// the stack once the loop finishes, so they compose with begin's
// "every statement leaves exactly one value" pop bookkeeping the same as
// any other form; there is no null value in this data model to use
// instead.
func (c *Compiler) genWhile(l *ast.List, s *scope.Scope) error {
	return c.genLoop(s, nil, l.Items[1], nil, l.Items[2])
}

func (c *Compiler) genFor(l *ast.List, s *scope.Scope) error {
	return c.genLoop(s, l.Items[1], l.Items[2], l.Items[3], l.Items[4])
}

func (c *Compiler) genLoop(s *scope.Scope, init, test, step, body ast.Expr) error {
	if init != nil {
		if err := c.gen(init, s); err != nil {
			return err
		}
	}

	testPos := len(c.current.Instructions)
	if err := c.gen(test, s); err != nil {
		return err
	}
	exitPos := c.emit(code.JMP_IF_FALSE, 0)

	if err := c.gen(body, s); err != nil {
		return err
	}
	c.emit(code.POP)

	if step != nil {
		if err := c.gen(step, s); err != nil {
			return err
		}
		c.emit(code.POP)
	}

	c.emit(code.JMP, testPos)
	c.patchJump(exitPos)

	idx := c.current.AddConstant(value.Boolean(false))
	c.emit(code.CONST, idx)
	return nil
}

func (c *Compiler) genVar(l *ast.List, s *scope.Scope) error {
	name := l.Items[1].(*ast.Symbol).Name
	init := l.Items[2]

	if err := c.genInitializer(init, s, name); err != nil {
		return err
	}

	kind, ok := s.AllocOf(name)
	if !ok {
		return evaerr.New(evaerr.Reference, "%s has no recorded allocation", name)
	}

	switch kind {
	case scope.AllocGlobal:
		idx := c.globals.Define(name)
		c.emit(code.SET_GLOBAL, idx)
		c.emit(code.POP)
	case scope.AllocCell:
		idx := c.current.LookupCell(name)
		if idx == -1 {
			// A cell owned by a block inside the function is not seeded
			// up front; it joins CellNames when its var is compiled.
			c.current.CellNames = append(c.current.CellNames, name)
			idx = len(c.current.CellNames) - 1
		}
		c.emit(code.SET_CELL, idx)
		c.emit(code.POP)
	case scope.AllocLocal:
		idx := c.current.AddLocal(name)
		c.emit(code.SET_LOCAL, idx)
	}
	return nil
}

// genInitializer lowers a var/def initializer expression, passing selfName
// through to function compilation so a lambda bound by (var f (lambda ...))
// can call itself recursively by that name.
func (c *Compiler) genInitializer(init ast.Expr, s *scope.Scope, selfName string) error {
	if ast.IsTaggedList(init, "lambda") {
		return c.genLambda(init.(*ast.List), s, selfName)
	}
	return c.gen(init, s)
}

func (c *Compiler) genSet(l *ast.List, s *scope.Scope) error {
	target := l.Items[1]
	val := l.Items[2]

	if propList, ok := target.(*ast.List); ok && ast.IsTaggedList(propList, "prop") {
		if err := c.gen(propList.Items[1], s); err != nil {
			return err
		}
		if err := c.gen(val, s); err != nil {
			return err
		}
		name := propList.Items[2].(*ast.Symbol).Name
		idx := c.current.AddConstant(value.Obj(c.heap.AllocString(name)))
		c.emit(code.SET_PROP, idx)
		return nil
	}

	name := target.(*ast.Symbol).Name
	if err := c.gen(val, s); err != nil {
		return err
	}

	op, err := s.NameSetterOp(name)
	if err != nil {
		return err
	}
	switch op {
	case code.SET_LOCAL:
		idx := c.current.LookupLocal(name)
		c.emit(code.SET_LOCAL, idx)
	case code.SET_CELL:
		idx := c.current.LookupCell(name)
		c.emit(code.SET_CELL, idx)
	default: // SET_GLOBAL
		idx := c.globals.GetIndex(name)
		if idx == -1 {
			return evaerr.New(evaerr.Reference, "%s does not exist, could not set its value", name)
		}
		c.emit(code.SET_GLOBAL, idx)
	}
	return nil
}

// isGlobalSet reports whether form is (set name value) where name
// resolves to a global binding — begin exempts exactly this shape from
// its automatic POP after a non-last statement.
func isGlobalSet(form ast.Expr, s *scope.Scope) bool {
	if !ast.IsTaggedList(form, "set") {
		return false
	}
	l := form.(*ast.List)
	sym, ok := l.Items[1].(*ast.Symbol)
	if !ok {
		return false
	}
	kind, ok := s.AllocOf(sym.Name)
	return ok && kind == scope.AllocGlobal
}

// isVarDecl reports whether form is a binding declaration (var, def, or
// class). Each of those settles its own stack effect — a popped global or
// cell store, or a stack slot that IS the new local — so begin never pops
// after one.
func isVarDecl(form ast.Expr) bool {
	return ast.IsTaggedList(form, "var") || ast.IsTaggedList(form, "def") || ast.IsTaggedList(form, "class")
}

// genBegin compiles a nested (begin ...) block: its own locals are popped
// by its own SCOPE_EXIT, and the Code's locals table is truncated
// afterward so sibling code reuses those stack slots correctly.
func (c *Compiler) genBegin(l *ast.List, outer *scope.Scope) error {
	blockScope, ok := c.scopeInfo[l]
	if !ok {
		return evaerr.New(evaerr.Opcode, "missing scope info for begin block")
	}

	before := len(c.current.Locals)
	if err := c.genBeginChildren(l.Items[1:], blockScope); err != nil {
		return err
	}
	n := len(c.current.Locals) - before
	c.emit(code.SCOPE_EXIT, n)
	c.current.Locals = c.current.Locals[:before]
	return nil
}

func (c *Compiler) genBeginChildren(forms []ast.Expr, s *scope.Scope) error {
	for i, form := range forms {
		if err := c.gen(form, s); err != nil {
			return err
		}
		last := i == len(forms)-1
		if !last && !isVarDecl(form) && !isGlobalSet(form, s) {
			c.emit(code.POP)
		}
	}
	return nil
}

func (c *Compiler) genDef(l *ast.List, outer *scope.Scope) error {
	name := l.Items[1].(*ast.Symbol).Name
	params := l.Items[2].(*ast.List)
	body := l.Items[3]

	fn, err := c.compileFunction(l, name, params, body, outer, false)
	if err != nil {
		return err
	}
	c.pushFunction(fn)

	kind, ok := outer.AllocOf(name)
	if !ok {
		return evaerr.New(evaerr.Reference, "%s has no recorded allocation", name)
	}
	switch kind {
	case scope.AllocGlobal:
		idx := c.globals.Define(name)
		c.emit(code.SET_GLOBAL, idx)
		c.emit(code.POP)
	case scope.AllocCell:
		idx := c.current.LookupCell(name)
		c.emit(code.SET_CELL, idx)
		c.emit(code.POP)
	case scope.AllocLocal:
		idx := c.current.AddLocal(name)
		c.emit(code.SET_LOCAL, idx)
	}
	return nil
}

func (c *Compiler) genLambda(l *ast.List, outer *scope.Scope, selfName string) error {
	params := l.Items[1].(*ast.List)
	body := l.Items[2]

	fn, err := c.compileFunction(l, selfName, params, body, outer, false)
	if err != nil {
		return err
	}
	c.pushFunction(fn)
	return nil
}

// pushFunction emits the bytecode that makes fn available on the stack:
// a bare CONST if it captured nothing, or a LOAD_CELL/CONST/MAKE_FUNCTION
// sequence if it closed over free variables of the enclosing function.
func (c *Compiler) pushFunction(fn *value.Function) {
	if fn.Code.FreeCount == 0 {
		idx := c.current.AddConstant(value.Obj(fn))
		c.emit(code.CONST, idx)
		return
	}

	for _, name := range fn.Code.CellNames[:fn.Code.FreeCount] {
		idx := c.current.LookupCell(name)
		c.emit(code.LOAD_CELL, idx)
	}
	idx := c.current.AddConstant(value.Obj(fn.Code))
	c.emit(code.CONST, idx)
	c.emit(code.MAKE_FUNCTION, fn.Code.FreeCount)
}

// compileFunction compiles a def/lambda/method node into a standalone
// value.Function, without emitting anything into the enclosing Code.
// The caller decides how to make it available (pushFunction, or a direct
// class-property assignment for methods).
//
// forceSelfReturn is set only for a class's constructor method: a
// constructor's body is free to end in whatever expression the author
// wrote, but (new ...) must always yield the instance it built, so a
// constructor's compiled body discards its own trailing value and
// substitutes its first parameter (self, by convention) instead.
func (c *Compiler) compileFunction(node *ast.List, selfName string, params *ast.List, body ast.Expr, outer *scope.Scope, forceSelfReturn bool) (*value.Function, error) {
	fnScope, ok := c.scopeInfo[node]
	if !ok {
		return nil, evaerr.New(evaerr.Opcode, "missing scope info for function")
	}

	savedCode := c.current
	name := selfName
	if name == "" {
		name = "lambda"
	}
	newCode := c.heap.AllocCode(name)
	newCode.Arity = len(params.Items)

	free := fnScope.SortedFree()
	own := fnScope.SortedCells()
	newCode.CellNames = append(append([]string{}, free...), own...)
	newCode.FreeCount = len(free)

	c.current = newCode

	newCode.AddLocal(selfName) // local 0: the callee itself
	for _, p := range params.Items {
		pname := p.(*ast.Symbol).Name
		idx := newCode.AddLocal(pname)

		if kind, ok := fnScope.AllocOf(pname); ok && kind == scope.AllocCell {
			cellIdx := newCode.LookupCell(pname)
			c.emit(code.GET_LOCAL, idx)
			c.emit(code.SET_CELL, cellIdx)
			c.emit(code.POP)
		}
	}

	// A (begin ...) body goes through genBegin like any other block, so it
	// is compiled against the block Scope the analyzer recorded for it.
	if err := c.gen(body, fnScope); err != nil {
		c.current = savedCode
		return nil, err
	}

	if forceSelfReturn {
		c.emit(code.POP)
		c.emit(code.GET_LOCAL, 1)
	}

	c.emit(code.SCOPE_EXIT, len(newCode.Locals))
	c.emit(code.RETURN)

	c.current = savedCode
	return c.heap.AllocFunction(newCode, nil), nil
}

func (c *Compiler) genCall(l *ast.List, s *scope.Scope) error {
	if err := c.gen(l.Items[0], s); err != nil {
		return err
	}
	for _, arg := range l.Items[1:] {
		if err := c.gen(arg, s); err != nil {
			return err
		}
	}
	c.emit(code.CALL, len(l.Items)-1)
	return nil
}

// genClass handles (class name super body...). The class and its methods
// are built entirely at compile time: methods become entries of the
// Class's property map directly, with no bytecode emitted for the
// installation itself, only for binding the finished Class to name as an
// ordinary variable.
func (c *Compiler) genClass(l *ast.List, s *scope.Scope) error {
	name := l.Items[1].(*ast.Symbol).Name

	var super *value.Class
	if sym, ok := l.Items[2].(*ast.Symbol); !ok || sym.Name != "null" {
		superName, ok := l.Items[2].(*ast.Symbol)
		if !ok {
			return evaerr.New(evaerr.Opcode, "superclass must be a class name or null")
		}
		super, ok = c.classesByName[superName.Name]
		if !ok {
			return evaerr.New(evaerr.Reference, "%s is not a known class", superName.Name)
		}
	}

	cls := c.heap.AllocClass(name, super)
	c.classesByName[name] = cls

	for _, member := range l.Items[3:] {
		methodDef := member.(*ast.List)
		methodName := methodDef.Items[1].(*ast.Symbol).Name
		params := methodDef.Items[2].(*ast.List)
		body := methodDef.Items[3]

		fn, err := c.compileFunction(methodDef, methodName, params, body, s, methodName == "constructor")
		if err != nil {
			return err
		}
		if fn.Code.FreeCount != 0 {
			return evaerr.New(evaerr.Opcode, "method %s.%s may not capture outer variables", name, methodName)
		}
		cls.Properties[methodName] = value.Obj(fn)
	}

	idx := c.current.AddConstant(value.Obj(cls))
	c.emit(code.CONST, idx)

	kind, ok := s.AllocOf(name)
	if !ok {
		return evaerr.New(evaerr.Reference, "%s has no recorded allocation", name)
	}
	switch kind {
	case scope.AllocGlobal:
		gidx := c.globals.Define(name)
		c.emit(code.SET_GLOBAL, gidx)
		c.emit(code.POP)
	case scope.AllocCell:
		cidx := c.current.LookupCell(name)
		c.emit(code.SET_CELL, cidx)
		c.emit(code.POP)
	case scope.AllocLocal:
		lidx := c.current.AddLocal(name)
		c.emit(code.SET_LOCAL, lidx)
	}
	return nil
}

func (c *Compiler) genNew(l *ast.List, s *scope.Scope) error {
	if err := c.gen(l.Items[1], s); err != nil {
		return err
	}
	c.emit(code.NEW)

	args := l.Items[2:]
	for _, arg := range args {
		if err := c.gen(arg, s); err != nil {
			return err
		}
	}
	c.emit(code.CALL, 1+len(args))
	return nil
}

func (c *Compiler) genProp(l *ast.List, s *scope.Scope) error {
	if err := c.gen(l.Items[1], s); err != nil {
		return err
	}
	name := l.Items[2].(*ast.Symbol).Name
	idx := c.current.AddConstant(value.Obj(c.heap.AllocString(name)))
	c.emit(code.GET_PROP, idx)
	return nil
}

func (c *Compiler) genSuper(l *ast.List, _ *scope.Scope) error {
	className := l.Items[1].(*ast.Symbol).Name
	cls, ok := c.classesByName[className]
	if !ok {
		return evaerr.New(evaerr.Reference, "%s is not a known class", className)
	}
	if cls.Super == nil {
		return evaerr.New(evaerr.Property, "%s has no superclass", className)
	}
	idx := c.current.AddConstant(value.Obj(cls.Super))
	c.emit(code.CONST, idx)
	return nil
}
