package ir

import (
	"fmt"
	"slices"

	"stackprot/grammar"
	"stackprot/internal/errors"

	"github.com/alecthomas/participle/v2/lexer"
)

// Opcodes lists every instruction mnemonic of the textual IR
var Opcodes = []string{
	"stack_alloc", "dealloc_stack", "alloc_box", "global_addr", "alloc_object",
	"field_addr", "tail_addr", "struct_element_addr", "addr_cast", "index_addr",
	"begin_access", "end_access", "address_to_pointer", "pointer_to_address",
	"builtin_stack_alloc", "function_ref", "call", "begin_apply", "partial_apply",
	"copy_addr", "load", "store", "object_cast", "struct", "struct_extract",
	"phi", "integer_literal",
	"br", "cond_br", "return", "throw", "unreachable",
}

// flags accepted per opcode; anything else is warned about and ignored
var knownFlags = map[string][]string{
	"alloc_object":       {"stack"},
	"begin_access":       {"read", "modify"},
	"address_to_pointer": {"flagged"},
	"index_addr":         {"flagged"},
	"copy_addr":          {"take", "init"},
}

// AttributeStackProtection marks a function as already protected in the text
const AttributeStackProtection = "stack_protection"

// Builder lowers a parsed textual IR file into a Module.
// Values are resolved in program order; only phi inputs may refer forward.
type Builder struct {
	module *Module
	diags  []errors.CompilerError

	// per-function state
	fn      *Function
	values  map[string]*Value
	pending []pendingInput
	mark    int // diagnostics count when the current instruction started
}

// pendingInput is a phi input naming a value that was not defined yet
type pendingInput struct {
	phi   *PhiInstruction
	index int
	name  string
	pos   lexer.Position
}

// NewBuilder creates a new IR builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build lowers a parsed file. The module is returned even when diagnostics
// contain errors so callers can report all of them at once.
func Build(file *grammar.File) (*Module, []errors.CompilerError) {
	return NewBuilder().Build(file)
}

// Build converts a parsed file to IR
func (b *Builder) Build(file *grammar.File) (*Module, []errors.CompilerError) {
	b.module = NewModule(file.Name)
	b.diags = nil

	// First pass: globals and function signatures so bodies can refer forward
	declared := make(map[*grammar.Function]*Function)
	for _, decl := range file.Decls {
		switch {
		case decl.Global != nil:
			b.declareGlobal(decl.Global)
		case decl.Function != nil:
			if fn := b.declareFunction(decl.Function); fn != nil {
				declared[decl.Function] = fn
			}
		}
	}

	// Second pass: tables and bodies
	for _, decl := range file.Decls {
		switch {
		case decl.Table != nil:
			b.buildTable(decl.Table)
		case decl.Function != nil:
			if fn, ok := declared[decl.Function]; ok {
				b.buildFunction(decl.Function, fn)
			}
		}
	}

	return b.module, b.diags
}

func (b *Builder) report(err errors.CompilerError) {
	b.diags = append(b.diags, err)
}

func position(pos lexer.Position) errors.Position {
	return errors.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Column}
}

func (b *Builder) declareGlobal(decl *grammar.Global) {
	name := grammar.Symbol(decl.Name)
	if b.module.LookupGlobal(name) != nil {
		b.report(errors.DuplicateDeclaration("@"+name, position(decl.Pos)))
		return
	}
	b.module.Globals = append(b.module.Globals, &Global{Name: name, Type: convertType(decl.Type)})
}

func (b *Builder) declareFunction(decl *grammar.Function) *Function {
	name := grammar.Symbol(decl.Name)
	if b.module.LookupFunction(name) != nil {
		b.report(errors.DuplicateDeclaration("@"+name, position(decl.Pos)))
		return nil
	}
	fn := b.module.NewFunction(name, decl.Public)
	seen := make(map[string]bool)
	for _, param := range decl.Params {
		paramName := grammar.Symbol(param.Name)
		if seen[paramName] {
			b.report(errors.DuplicateValue(paramName, position(param.Pos)))
			continue
		}
		seen[paramName] = true

		t := convertType(param.Type)
		convention := Convention(param.Convention)
		if convention == "" {
			convention = defaultConvention(t)
		}
		if convention.IsIndirect() && !IsAddress(t) {
			b.report(errors.ExpectedAddress(string(convention), paramName, position(param.Pos)))
		}
		fn.AddParam(paramName, convention, t)
	}
	for _, attr := range decl.Attributes {
		if attr == AttributeStackProtection {
			fn.SetNeedsStackProtection()
		} else {
			b.report(errors.UnknownFlag("func", attr, position(decl.Pos)))
		}
	}
	return fn
}

// defaultConvention picks "in" for addresses and "value" otherwise
func defaultConvention(t Type) Convention {
	if IsAddress(t) {
		return ConventionIndirectIn
	}
	return ConventionDirect
}

func (b *Builder) buildTable(decl *grammar.Table) {
	table := &FunctionTable{Name: grammar.Symbol(decl.Name)}
	for _, entry := range decl.Entries {
		fn := b.module.LookupFunction(grammar.Symbol(entry))
		if fn == nil {
			b.report(errors.UndefinedSymbol("function", grammar.Symbol(entry), position(decl.Pos), b.functionNames()))
			continue
		}
		table.Functions = append(table.Functions, fn)
	}
	b.module.Tables = append(b.module.Tables, table)
}

func (b *Builder) buildFunction(decl *grammar.Function, fn *Function) {
	b.fn = fn
	b.values = make(map[string]*Value)
	b.pending = nil

	for _, param := range fn.Params {
		b.values[param.Name] = param.Value
	}

	// Create all blocks first so branches may target later blocks
	for _, block := range decl.Blocks {
		label := grammar.BlockName(block.Label)
		if fn.LookupBlock(label) != nil {
			b.report(errors.DuplicateDeclaration(label, position(block.Pos)))
			continue
		}
		fn.AddBlock(label)
	}

	for _, block := range decl.Blocks {
		b.buildBlock(block)
	}

	for _, p := range b.pending {
		v, ok := b.values[p.name]
		if !ok {
			b.report(errors.UndefinedValue(p.name, position(p.pos), b.valueNames()))
			continue
		}
		p.phi.Inputs[p.index] = v
	}
	b.fn = nil
}

func (b *Builder) buildBlock(decl *grammar.Block) {
	block := b.fn.LookupBlock(grammar.BlockName(decl.Label))
	if block == nil || block.Terminator != nil || len(block.Instructions) > 0 {
		// duplicate label, already reported
		return
	}
	in := AtEnd(block)
	for _, inst := range decl.Instructions {
		if block.Terminator != nil {
			b.report(errors.MisplacedTerminator(block.Terminator.String(), position(inst.Pos)))
			return
		}
		b.buildInstruction(in, inst)
	}
	if block.Terminator == nil {
		b.report(errors.MissingTerminator(block.Label, position(decl.Pos)))
	}
}

// operand accessors -------------------------------------------------------

func (b *Builder) value(inst *grammar.Instruction, i int) (*Value, bool) {
	if i >= len(inst.Operands) || inst.Operands[i].Value == "" {
		return nil, false
	}
	op := inst.Operands[i]
	name := grammar.Symbol(op.Value)
	v, ok := b.values[name]
	if !ok {
		b.report(errors.UndefinedValue(name, position(op.Pos), b.valueNames()))
		return nil, false
	}
	return v, true
}

func (b *Builder) address(inst *grammar.Instruction, i int) (*Value, bool) {
	v, ok := b.value(inst, i)
	if !ok {
		return nil, false
	}
	if !IsAddress(v.Type) {
		b.report(errors.ExpectedAddress(inst.Opcode, v.Name, position(inst.Operands[i].Pos)))
		return nil, false
	}
	return v, true
}

func (b *Builder) ident(inst *grammar.Instruction, i int) (string, bool) {
	if i >= len(inst.Operands) || inst.Operands[i].Type == nil || inst.Operands[i].Type.Address {
		return "", false
	}
	return inst.Operands[i].Type.Name, true
}

func (b *Builder) typeOperand(inst *grammar.Instruction, i int) (Type, bool) {
	if i >= len(inst.Operands) || inst.Operands[i].Type == nil {
		return nil, false
	}
	return convertType(inst.Operands[i].Type), true
}

func (b *Builder) block(inst *grammar.Instruction, i int) (*BasicBlock, bool) {
	label, ok := b.ident(inst, i)
	if !ok {
		return nil, false
	}
	target := b.fn.LookupBlock(label)
	if target == nil {
		b.report(errors.UndefinedBlock(label, position(inst.Operands[i].Pos)))
		return nil, false
	}
	return target, true
}

func (b *Builder) symbol(inst *grammar.Instruction, i int) (string, bool) {
	if i >= len(inst.Operands) || inst.Operands[i].Global == "" {
		return "", false
	}
	return grammar.Symbol(inst.Operands[i].Global), true
}

func (b *Builder) args(inst *grammar.Instruction) ([]*Value, bool) {
	args := make([]*Value, 0, len(inst.Args))
	ok := true
	for _, arg := range inst.Args {
		name := grammar.Symbol(arg)
		v, found := b.values[name]
		if !found {
			b.report(errors.UndefinedValue(name, position(inst.Pos), b.valueNames()))
			ok = false
			continue
		}
		args = append(args, v)
	}
	return args, ok
}

// resultType returns the trailing ": T" annotation or fallback
func resultType(inst *grammar.Instruction, fallback Type) Type {
	if inst.Type == nil {
		return fallback
	}
	return convertType(inst.Type)
}

// addressResultType is resultType forced to an address
func addressResultType(inst *grammar.Instruction, fallback Type) Type {
	t := resultType(inst, fallback)
	if !IsAddress(t) {
		return &AddressType{Elem: t}
	}
	return t
}

// invalid reports an operand mismatch unless a more precise diagnostic was
// already produced for the instruction
func (b *Builder) invalid(inst *grammar.Instruction, expected string) {
	if len(b.diags) > b.mark {
		return
	}
	b.report(errors.InvalidOperands(inst.Opcode, expected, position(inst.Pos)))
}

// define binds the textual result name to the value produced by an instruction
func (b *Builder) define(inst *grammar.Instruction, result *Value) {
	if inst.Result == "" {
		return
	}
	name := grammar.Symbol(inst.Result)
	if result == nil {
		b.report(errors.InvalidOperands(inst.Opcode, "no result", position(inst.Pos)))
		return
	}
	if _, exists := b.values[name]; exists {
		b.report(errors.DuplicateValue(name, position(inst.Pos)))
		return
	}
	result.Name = name
	b.values[name] = result
}

func (b *Builder) checkFlags(inst *grammar.Instruction) {
	allowed := knownFlags[inst.Opcode]
	for _, flag := range inst.Flags {
		if !slices.Contains(allowed, flag) {
			b.report(errors.UnknownFlag(inst.Opcode, flag, position(inst.Pos)))
		}
	}
}

// buildInstruction lowers one textual instruction at the insertion point
func (b *Builder) buildInstruction(in *Inserter, inst *grammar.Instruction) {
	if !slices.Contains(Opcodes, inst.Opcode) {
		b.report(errors.UnknownOpcode(inst.Opcode, position(inst.Pos), Opcodes))
		return
	}
	b.checkFlags(inst)
	b.mark = len(b.diags)

	var result Instruction
	switch inst.Opcode {
	case "stack_alloc":
		t, ok := b.typeOperand(inst, 0)
		if !ok {
			b.invalid(inst, "a type")
			return
		}
		result = in.CreateStackAllocate(t)

	case "dealloc_stack":
		addr, ok := b.address(inst, 0)
		if !ok {
			b.invalid(inst, "an address")
			return
		}
		result = in.CreateDeallocateStack(addr)

	case "alloc_box":
		t, ok := b.typeOperand(inst, 0)
		if !ok {
			b.invalid(inst, "a type")
			return
		}
		result = in.CreateHeapBoxAllocate(t)

	case "global_addr":
		name, ok := b.symbol(inst, 0)
		if !ok {
			b.invalid(inst, "a global symbol")
			return
		}
		g := b.module.LookupGlobal(name)
		if g == nil {
			b.report(errors.UndefinedSymbol("global", name, position(inst.Pos), b.globalNames()))
			return
		}
		result = in.CreateGlobalAddress(g)

	case "alloc_object":
		class, ok := b.ident(inst, 0)
		if !ok {
			b.invalid(inst, "a class name")
			return
		}
		result = in.CreateObjectAllocate(class, inst.HasFlag("stack"))

	case "field_addr":
		obj, ok := b.value(inst, 0)
		field, hasField := b.ident(inst, 1)
		if !ok || !hasField {
			b.invalid(inst, "an object and a field name")
			return
		}
		created := in.CreateFieldAddress(obj, field, nil)
		created.Result.Type = addressResultType(inst, &IntType{Bits: 64})
		result = created

	case "tail_addr":
		obj, ok := b.value(inst, 0)
		if !ok {
			b.invalid(inst, "an object")
			return
		}
		created := in.CreateTailElementAddress(obj, nil)
		created.Result.Type = addressResultType(inst, &IntType{Bits: 8})
		result = created

	case "struct_element_addr":
		base, ok := b.address(inst, 0)
		field, hasField := b.ident(inst, 1)
		if !ok || !hasField {
			b.invalid(inst, "an address and a field name")
			return
		}
		created := in.CreateStructElementAddress(base, field, nil)
		created.Result.Type = addressResultType(inst, &IntType{Bits: 64})
		result = created

	case "addr_cast":
		addr, ok := b.address(inst, 0)
		t, hasType := b.typeOperand(inst, 1)
		if !ok || !hasType {
			b.invalid(inst, "an address and a type")
			return
		}
		result = in.CreateAddressCast(addr, ObjectType(t))

	case "index_addr":
		base, ok := b.address(inst, 0)
		offset, hasOffset := b.value(inst, 1)
		if !ok || !hasOffset {
			b.invalid(inst, "an address and an index")
			return
		}
		result = in.CreateIndexAddress(base, offset, inst.HasFlag("flagged"))

	case "begin_access":
		addr, ok := b.address(inst, 0)
		if !ok {
			b.invalid(inst, "an address")
			return
		}
		kind := AccessRead
		if inst.HasFlag("modify") {
			kind = AccessModify
		}
		result = in.CreateBeginScopedAccess(addr, kind)

	case "end_access":
		scope, ok := b.value(inst, 0)
		if !ok {
			b.invalid(inst, "an access scope")
			return
		}
		if _, isScope := scope.Def.(*BeginScopedAccessInstruction); !isScope {
			b.invalid(inst, "the result of a begin_access")
			return
		}
		result = in.CreateEndScopedAccess(scope)

	case "address_to_pointer":
		addr, ok := b.address(inst, 0)
		if !ok {
			b.invalid(inst, "an address")
			return
		}
		result = in.CreateAddressToRawPointer(addr, inst.HasFlag("flagged"))

	case "pointer_to_address":
		ptr, ok := b.value(inst, 0)
		t, hasType := b.typeOperand(inst, 1)
		if !ok || !hasType {
			b.invalid(inst, "a pointer and a type")
			return
		}
		result = in.CreateRawPointerToAddress(ptr, ObjectType(t))

	case "builtin_stack_alloc":
		size, ok := b.value(inst, 0)
		if !ok {
			b.invalid(inst, "a size")
			return
		}
		result = in.CreateStackAllocBuiltin(size)

	case "function_ref":
		name, ok := b.symbol(inst, 0)
		if !ok {
			b.invalid(inst, "a function symbol")
			return
		}
		fn := b.module.LookupFunction(name)
		if fn == nil {
			b.report(errors.UndefinedSymbol("function", name, position(inst.Pos), b.functionNames()))
			return
		}
		result = in.CreateFunctionReference(fn)

	case "call", "begin_apply", "partial_apply":
		callee, ok := b.value(inst, 0)
		if !ok {
			b.invalid(inst, "a callee")
			return
		}
		args, argsOK := b.args(inst)
		if !argsOK {
			return
		}
		switch inst.Opcode {
		case "call":
			var t Type
			if inst.Result != "" {
				t = resultType(inst, &IntType{Bits: 64})
			}
			result = in.CreateCall(callee, args, t)
		case "begin_apply":
			created := in.CreateBeginApply(callee, args, nil)
			created.Result.Type = addressResultType(inst, &IntType{Bits: 64})
			result = created
		default:
			result = in.CreatePartialApply(callee, args)
		}

	case "copy_addr":
		from, ok := b.address(inst, 0)
		to, toOK := b.address(inst, 1)
		if !ok || !toOK {
			b.invalid(inst, "a source and a destination address")
			return
		}
		result = in.CreateCopyAddress(from, to, inst.HasFlag("take"), inst.HasFlag("init"))

	case "load":
		addr, ok := b.address(inst, 0)
		if !ok {
			b.invalid(inst, "an address")
			return
		}
		result = in.CreateLoad(addr)

	case "store":
		v, ok := b.value(inst, 0)
		addr, addrOK := b.address(inst, 1)
		if !ok || !addrOK {
			b.invalid(inst, "a value and an address")
			return
		}
		result = in.CreateStore(v, addr)

	case "object_cast":
		obj, ok := b.value(inst, 0)
		t, hasType := b.typeOperand(inst, 1)
		if !ok || !hasType {
			b.invalid(inst, "an object and a class")
			return
		}
		result = in.CreateObjectCast(obj, t)

	case "struct":
		fields := make([]*Value, 0, len(inst.Operands))
		for i := range inst.Operands {
			v, ok := b.value(inst, i)
			if !ok {
				b.invalid(inst, "field values")
				return
			}
			fields = append(fields, v)
		}
		result = in.CreateStruct(fields, resultType(inst, &NamedType{Name: "Struct"}))

	case "struct_extract":
		agg, ok := b.value(inst, 0)
		field, hasField := b.ident(inst, 1)
		if !ok || !hasField {
			b.invalid(inst, "an aggregate and a field name")
			return
		}
		result = in.CreateStructExtract(agg, field, resultType(inst, &IntType{Bits: 64}))

	case "phi":
		result = b.buildPhi(in, inst)
		if result == nil {
			return
		}

	case "integer_literal":
		if len(inst.Operands) != 1 || inst.Operands[0].Integer == nil {
			b.invalid(inst, "an integer")
			return
		}
		result = in.CreateConstant(*inst.Operands[0].Integer, resultType(inst, &IntType{Bits: 64}))

	case "br":
		target, ok := b.block(inst, 0)
		if !ok {
			b.invalid(inst, "a target block")
			return
		}
		result = in.CreateJump(target)

	case "cond_br":
		cond, ok := b.value(inst, 0)
		ifTrue, trueOK := b.block(inst, 1)
		ifFalse, falseOK := b.block(inst, 2)
		if !ok || !trueOK || !falseOK {
			b.invalid(inst, "a condition and two target blocks")
			return
		}
		result = in.CreateBranch(cond, ifTrue, ifFalse)

	case "return":
		var v *Value
		if len(inst.Operands) > 0 {
			var ok bool
			if v, ok = b.value(inst, 0); !ok {
				b.invalid(inst, "an optional value")
				return
			}
		}
		result = in.CreateReturn(v)

	case "throw":
		v, ok := b.value(inst, 0)
		if !ok {
			b.invalid(inst, "an error value")
			return
		}
		result = in.CreateThrow(v)

	case "unreachable":
		result = in.CreateUnreachable()
	}

	b.define(inst, result.GetResult())
}

// buildPhi lowers "phi T { bb1: %a, bb2: %b }". Inputs may name values
// defined later in the function; those are patched when the function is
// complete.
func (b *Builder) buildPhi(in *Inserter, inst *grammar.Instruction) Instruction {
	t, ok := b.typeOperand(inst, 0)
	if !ok || len(inst.Operands) != 1 || len(inst.Incoming) == 0 {
		b.invalid(inst, "a type and at least one incoming value")
		return nil
	}
	var blocks []*BasicBlock
	var inputs []*Value
	var forward []pendingInput
	for i, incoming := range inst.Incoming {
		label := grammar.BlockName(incoming.Block)
		pred := b.fn.LookupBlock(label)
		if pred == nil {
			b.report(errors.UndefinedBlock(label, position(incoming.Pos)))
			return nil
		}
		name := grammar.Symbol(incoming.Value)
		v := b.values[name]
		if v == nil {
			forward = append(forward, pendingInput{index: i, name: name, pos: incoming.Pos})
		}
		blocks = append(blocks, pred)
		inputs = append(inputs, v)
	}
	phi := in.CreatePhi(blocks, inputs, t)
	for _, p := range forward {
		p.phi = phi
		b.pending = append(b.pending, p)
	}
	return phi
}

func convertType(t *grammar.Type) Type {
	return ParseType(t.Address, t.Name)
}

func (b *Builder) valueNames() []string {
	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (b *Builder) functionNames() []string {
	names := make([]string, 0, len(b.module.Functions))
	for _, fn := range b.module.Functions {
		names = append(names, fn.Name)
	}
	return names
}

func (b *Builder) globalNames() []string {
	names := make([]string, 0, len(b.module.Globals))
	for _, g := range b.module.Globals {
		names = append(names, g.Name)
	}
	return names
}

// ParseModule parses and lowers textual IR in one step. A syntax error is
// returned as a single diagnostic.
func ParseModule(filename, source string) (*Module, []errors.CompilerError) {
	file, err := grammar.Parse(filename, source)
	if err != nil {
		pos, msg, ok := grammar.ErrorPosition(err)
		if !ok {
			msg = err.Error()
			pos = lexer.Position{Filename: filename, Line: 1, Column: 1}
		}
		return nil, []errors.CompilerError{errors.Syntax(fmt.Sprintf("syntax error: %s", msg), position(pos))}
	}
	return Build(file)
}
