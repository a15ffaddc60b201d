package ir

import (
	"fmt"
	"strings"
)

// IR types and structures for the middle-end.
// The IR uses Static Single Assignment (SSA) form with basic blocks; memory is
// addressed through address-typed values that are rooted at allocations,
// globals, object fields or function arguments.

// Module represents a whole compilation unit in IR form
type Module struct {
	Name      string
	Functions []*Function
	Globals   []*Global
	Tables    []*FunctionTable

	nextValueID int
	nextInstID  int
}

// Global represents a module-level variable
type Global struct {
	Name string
	Type Type
}

// FunctionTable represents a dispatch table (vtable, witness table). Functions
// referenced from a table can be called from anywhere.
type FunctionTable struct {
	Name      string
	Functions []*Function
}

// Function represents a function in IR form
type Function struct {
	Name   string
	Public bool
	Params []*Argument
	Blocks []*BasicBlock
	Module *Module

	needsStackProtection bool
}

// Convention describes how an argument is passed
type Convention string

const (
	ConventionDirect               Convention = "value"
	ConventionIndirectIn           Convention = "in"
	ConventionIndirectInout        Convention = "inout"
	ConventionIndirectInoutAliased Convention = "inout_aliasable"
	ConventionIndirectOut          Convention = "out"
)

// IsInout reports whether the callee may read and write the passed storage.
func (c Convention) IsInout() bool {
	return c == ConventionIndirectInout || c == ConventionIndirectInoutAliased
}

// IsIndirect reports whether the argument is passed as an address.
func (c Convention) IsIndirect() bool {
	return c != ConventionDirect
}

// Argument represents a function parameter
type Argument struct {
	Index      int
	Name       string
	Convention Convention
	Function   *Function
	Value      *Value
}

// BasicBlock represents a sequence of instructions with no branches
type BasicBlock struct {
	Label        string
	Function     *Function
	Instructions []Instruction
	Terminator   Terminator
}

// Value represents a value in SSA form - each value has exactly one definition,
// either an instruction or a function argument
type Value struct {
	ID   int
	Name string
	Type Type
	Def  Instruction
	Arg  *Argument
}

func (v *Value) String() string { return "%" + v.Name }

// Function returns the function the value is defined in.
func (v *Value) Function() *Function {
	if v.Arg != nil {
		return v.Arg.Function
	}
	if v.Def != nil && v.Def.GetBlock() != nil {
		return v.Def.GetBlock().Function
	}
	return nil
}

// NeedsStackProtection reports whether codegen must emit a stack protector
func (f *Function) NeedsStackProtection() bool { return f.needsStackProtection }

// SetNeedsStackProtection marks the function. The flag is never cleared.
// Returns true if the flag changed.
func (f *Function) SetNeedsStackProtection() bool {
	if f.needsStackProtection {
		return false
	}
	f.needsStackProtection = true
	return true
}

// Entry returns the entry block of the function
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Instructions in SSA form

// Instruction is implemented by every opcode of the IR. The set is closed:
// only the types declared in this package implement it.
type Instruction interface {
	GetID() int
	GetResult() *Value
	GetOperands() []*Value
	SetOperand(index int, value *Value)
	GetBlock() *BasicBlock
	IsTerminator() bool
	String() string

	setBlock(block *BasicBlock)
	setID(id int)
}

// Terminators end basic blocks
type Terminator interface {
	Instruction
	GetSuccessors() []*BasicBlock
	IsFunctionExiting() bool
}

// ApplySite is a call-like instruction applying a callee to arguments.
type ApplySite interface {
	Instruction
	GetCallee() *Value
	GetArgs() []*Value
	// CallerArgument maps the callee's argument index to the value passed at
	// this site. numCalleeArgs is the callee's full parameter count.
	CallerArgument(calleeIndex, numCalleeArgs int) (*Value, bool)
}

// AccessKind is the kind of a scoped access
type AccessKind string

const (
	AccessRead   AccessKind = "read"
	AccessModify AccessKind = "modify"
)

type node struct {
	ID    int
	Block *BasicBlock
}

func (n *node) GetID() int                 { return n.ID }
func (n *node) GetBlock() *BasicBlock      { return n.Block }
func (n *node) setBlock(block *BasicBlock) { n.Block = block }
func (n *node) setID(id int)               { n.ID = id }

// Storage roots

type StackAllocateInstruction struct {
	node
	Result *Value
	Type   Type
}

type DeallocateStackInstruction struct {
	node
	Address *Value
}

type HeapBoxAllocateInstruction struct {
	node
	Result *Value
	Type   Type
}

type GlobalAddressInstruction struct {
	node
	Result *Value
	Global *Global
}

type ObjectAllocateInstruction struct {
	node
	Result        *Value
	Class         string
	StackEligible bool
}

// Address projections

type FieldAddressInstruction struct {
	node
	Result *Value
	Object *Value
	Field  string
}

type TailElementAddressInstruction struct {
	node
	Result *Value
	Object *Value
}

type StructElementAddressInstruction struct {
	node
	Result *Value
	Base   *Value
	Field  string
}

type AddressCastInstruction struct {
	node
	Result  *Value
	Address *Value
}

type IndexAddressInstruction struct {
	node
	Result  *Value
	Base    *Value
	Offset  *Value
	Flagged bool
}

// Access scopes

type BeginScopedAccessInstruction struct {
	node
	Result  *Value
	Address *Value
	Kind    AccessKind
}

type EndScopedAccessInstruction struct {
	node
	Scope *Value
}

// Raw pointers

type AddressToRawPointerInstruction struct {
	node
	Result  *Value
	Address *Value
	Flagged bool
}

type RawPointerToAddressInstruction struct {
	node
	Result  *Value
	Pointer *Value
}

type StackAllocBuiltinInstruction struct {
	node
	Result *Value
	Size   *Value
}

// Functions and calls

type FunctionReferenceInstruction struct {
	node
	Result   *Value
	Function *Function
}

type CallInstruction struct {
	node
	Result *Value
	Callee *Value
	Args   []*Value
}

type BeginApplyInstruction struct {
	node
	Result *Value // yielded address
	Callee *Value
	Args   []*Value
}

type PartialApplyInstruction struct {
	node
	Result *Value
	Callee *Value
	Args   []*Value // bound to the trailing callee arguments
}

// Memory

type CopyAddressInstruction struct {
	node
	From           *Value
	To             *Value
	TakeSource     bool
	InitializeDest bool
}

type LoadInstruction struct {
	node
	Result  *Value
	Address *Value
}

type StoreInstruction struct {
	node
	Value   *Value
	Address *Value
}

// Objects and aggregates

type ObjectCastInstruction struct {
	node
	Result *Value
	Object *Value
}

type StructInstruction struct {
	node
	Result *Value
	Fields []*Value
}

type StructExtractInstruction struct {
	node
	Result    *Value
	Aggregate *Value
	Field     string
}

type PhiInstruction struct {
	node
	Result *Value
	Blocks []*BasicBlock
	Inputs []*Value
}

type ConstantInstruction struct {
	node
	Result *Value
	Value  int64
}

// Terminators

type ReturnTerminator struct {
	node
	Value *Value
}

type ThrowTerminator struct {
	node
	Error *Value
}

type UnreachableTerminator struct {
	node
}

type BranchTerminator struct {
	node
	Condition  *Value
	TrueBlock  *BasicBlock
	FalseBlock *BasicBlock
}

type JumpTerminator struct {
	node
	Target *BasicBlock
}

// Implementation of interfaces

func (s *StackAllocateInstruction) GetResult() *Value       { return s.Result }
func (s *StackAllocateInstruction) GetOperands() []*Value   { return nil }
func (s *StackAllocateInstruction) SetOperand(int, *Value)  {}
func (s *StackAllocateInstruction) IsTerminator() bool      { return false }
func (d *DeallocateStackInstruction) GetResult() *Value     { return nil }
func (d *DeallocateStackInstruction) GetOperands() []*Value { return []*Value{d.Address} }
func (d *DeallocateStackInstruction) SetOperand(_ int, v *Value) {
	d.Address = v
}
func (d *DeallocateStackInstruction) IsTerminator() bool { return false }

func (h *HeapBoxAllocateInstruction) GetResult() *Value     { return h.Result }
func (h *HeapBoxAllocateInstruction) GetOperands() []*Value { return nil }
func (h *HeapBoxAllocateInstruction) SetOperand(int, *Value) {}
func (h *HeapBoxAllocateInstruction) IsTerminator() bool { return false }

func (g *GlobalAddressInstruction) GetResult() *Value      { return g.Result }
func (g *GlobalAddressInstruction) GetOperands() []*Value  { return nil }
func (g *GlobalAddressInstruction) SetOperand(int, *Value) {}
func (g *GlobalAddressInstruction) IsTerminator() bool     { return false }

func (o *ObjectAllocateInstruction) GetResult() *Value      { return o.Result }
func (o *ObjectAllocateInstruction) GetOperands() []*Value  { return nil }
func (o *ObjectAllocateInstruction) SetOperand(int, *Value) {}
func (o *ObjectAllocateInstruction) IsTerminator() bool     { return false }

func (f *FieldAddressInstruction) GetResult() *Value           { return f.Result }
func (f *FieldAddressInstruction) GetOperands() []*Value       { return []*Value{f.Object} }
func (f *FieldAddressInstruction) SetOperand(_ int, v *Value)  { f.Object = v }
func (f *FieldAddressInstruction) IsTerminator() bool          { return false }
func (t *TailElementAddressInstruction) GetResult() *Value     { return t.Result }
func (t *TailElementAddressInstruction) GetOperands() []*Value { return []*Value{t.Object} }
func (t *TailElementAddressInstruction) SetOperand(_ int, v *Value) {
	t.Object = v
}
func (t *TailElementAddressInstruction) IsTerminator() bool { return false }

func (s *StructElementAddressInstruction) GetResult() *Value     { return s.Result }
func (s *StructElementAddressInstruction) GetOperands() []*Value { return []*Value{s.Base} }
func (s *StructElementAddressInstruction) SetOperand(_ int, v *Value) {
	s.Base = v
}
func (s *StructElementAddressInstruction) IsTerminator() bool { return false }

func (a *AddressCastInstruction) GetResult() *Value          { return a.Result }
func (a *AddressCastInstruction) GetOperands() []*Value      { return []*Value{a.Address} }
func (a *AddressCastInstruction) SetOperand(_ int, v *Value) { a.Address = v }
func (a *AddressCastInstruction) IsTerminator() bool         { return false }

func (i *IndexAddressInstruction) GetResult() *Value     { return i.Result }
func (i *IndexAddressInstruction) GetOperands() []*Value { return []*Value{i.Base, i.Offset} }
func (i *IndexAddressInstruction) SetOperand(index int, v *Value) {
	if index == 0 {
		i.Base = v
	} else {
		i.Offset = v
	}
}
func (i *IndexAddressInstruction) IsTerminator() bool { return false }

func (b *BeginScopedAccessInstruction) GetResult() *Value          { return b.Result }
func (b *BeginScopedAccessInstruction) GetOperands() []*Value      { return []*Value{b.Address} }
func (b *BeginScopedAccessInstruction) SetOperand(_ int, v *Value) { b.Address = v }
func (b *BeginScopedAccessInstruction) IsTerminator() bool         { return false }

// EndInstructions returns every end_access closing this scope. A scope may
// have several ends, e.g. one per branch.
func (b *BeginScopedAccessInstruction) EndInstructions() []*EndScopedAccessInstruction {
	var ends []*EndScopedAccessInstruction
	for _, use := range Uses(b.Block.Function, b.Result) {
		if end, ok := use.User.(*EndScopedAccessInstruction); ok {
			ends = append(ends, end)
		}
	}
	return ends
}

func (e *EndScopedAccessInstruction) GetResult() *Value          { return nil }
func (e *EndScopedAccessInstruction) GetOperands() []*Value      { return []*Value{e.Scope} }
func (e *EndScopedAccessInstruction) SetOperand(_ int, v *Value) { e.Scope = v }
func (e *EndScopedAccessInstruction) IsTerminator() bool         { return false }

func (a *AddressToRawPointerInstruction) GetResult() *Value     { return a.Result }
func (a *AddressToRawPointerInstruction) GetOperands() []*Value { return []*Value{a.Address} }
func (a *AddressToRawPointerInstruction) SetOperand(_ int, v *Value) {
	a.Address = v
}
func (a *AddressToRawPointerInstruction) IsTerminator() bool { return false }

func (r *RawPointerToAddressInstruction) GetResult() *Value     { return r.Result }
func (r *RawPointerToAddressInstruction) GetOperands() []*Value { return []*Value{r.Pointer} }
func (r *RawPointerToAddressInstruction) SetOperand(_ int, v *Value) {
	r.Pointer = v
}
func (r *RawPointerToAddressInstruction) IsTerminator() bool { return false }

func (s *StackAllocBuiltinInstruction) GetResult() *Value          { return s.Result }
func (s *StackAllocBuiltinInstruction) GetOperands() []*Value      { return []*Value{s.Size} }
func (s *StackAllocBuiltinInstruction) SetOperand(_ int, v *Value) { s.Size = v }
func (s *StackAllocBuiltinInstruction) IsTerminator() bool         { return false }

func (f *FunctionReferenceInstruction) GetResult() *Value      { return f.Result }
func (f *FunctionReferenceInstruction) GetOperands() []*Value  { return nil }
func (f *FunctionReferenceInstruction) SetOperand(int, *Value) {}
func (f *FunctionReferenceInstruction) IsTerminator() bool     { return false }

func applyOperands(callee *Value, args []*Value) []*Value {
	ops := make([]*Value, 0, len(args)+1)
	ops = append(ops, callee)
	return append(ops, args...)
}

func (c *CallInstruction) GetResult() *Value     { return c.Result }
func (c *CallInstruction) GetOperands() []*Value { return applyOperands(c.Callee, c.Args) }
func (c *CallInstruction) SetOperand(index int, v *Value) {
	if index == 0 {
		c.Callee = v
	} else {
		c.Args[index-1] = v
	}
}
func (c *CallInstruction) IsTerminator() bool { return false }
func (c *CallInstruction) GetCallee() *Value  { return c.Callee }
func (c *CallInstruction) GetArgs() []*Value  { return c.Args }
func (c *CallInstruction) CallerArgument(calleeIndex, numCalleeArgs int) (*Value, bool) {
	if len(c.Args) != numCalleeArgs || calleeIndex < 0 || calleeIndex >= len(c.Args) {
		return nil, false
	}
	return c.Args[calleeIndex], true
}

func (b *BeginApplyInstruction) GetResult() *Value     { return b.Result }
func (b *BeginApplyInstruction) GetOperands() []*Value { return applyOperands(b.Callee, b.Args) }
func (b *BeginApplyInstruction) SetOperand(index int, v *Value) {
	if index == 0 {
		b.Callee = v
	} else {
		b.Args[index-1] = v
	}
}
func (b *BeginApplyInstruction) IsTerminator() bool { return false }
func (b *BeginApplyInstruction) GetCallee() *Value  { return b.Callee }
func (b *BeginApplyInstruction) GetArgs() []*Value  { return b.Args }
func (b *BeginApplyInstruction) CallerArgument(calleeIndex, numCalleeArgs int) (*Value, bool) {
	if len(b.Args) != numCalleeArgs || calleeIndex < 0 || calleeIndex >= len(b.Args) {
		return nil, false
	}
	return b.Args[calleeIndex], true
}

func (p *PartialApplyInstruction) GetResult() *Value     { return p.Result }
func (p *PartialApplyInstruction) GetOperands() []*Value { return applyOperands(p.Callee, p.Args) }
func (p *PartialApplyInstruction) SetOperand(index int, v *Value) {
	if index == 0 {
		p.Callee = v
	} else {
		p.Args[index-1] = v
	}
}
func (p *PartialApplyInstruction) IsTerminator() bool { return false }
func (p *PartialApplyInstruction) GetCallee() *Value  { return p.Callee }
func (p *PartialApplyInstruction) GetArgs() []*Value  { return p.Args }

// CallerArgument maps only the captured (trailing) arguments; the leading
// ones are supplied later by whoever calls the closure.
func (p *PartialApplyInstruction) CallerArgument(calleeIndex, numCalleeArgs int) (*Value, bool) {
	first := numCalleeArgs - len(p.Args)
	if first < 0 || calleeIndex < first || calleeIndex >= numCalleeArgs {
		return nil, false
	}
	return p.Args[calleeIndex-first], true
}

func (c *CopyAddressInstruction) GetResult() *Value     { return nil }
func (c *CopyAddressInstruction) GetOperands() []*Value { return []*Value{c.From, c.To} }
func (c *CopyAddressInstruction) SetOperand(index int, v *Value) {
	if index == 0 {
		c.From = v
	} else {
		c.To = v
	}
}
func (c *CopyAddressInstruction) IsTerminator() bool { return false }

func (l *LoadInstruction) GetResult() *Value          { return l.Result }
func (l *LoadInstruction) GetOperands() []*Value      { return []*Value{l.Address} }
func (l *LoadInstruction) SetOperand(_ int, v *Value) { l.Address = v }
func (l *LoadInstruction) IsTerminator() bool         { return false }

func (s *StoreInstruction) GetResult() *Value     { return nil }
func (s *StoreInstruction) GetOperands() []*Value { return []*Value{s.Value, s.Address} }
func (s *StoreInstruction) SetOperand(index int, v *Value) {
	if index == 0 {
		s.Value = v
	} else {
		s.Address = v
	}
}
func (s *StoreInstruction) IsTerminator() bool { return false }

func (o *ObjectCastInstruction) GetResult() *Value          { return o.Result }
func (o *ObjectCastInstruction) GetOperands() []*Value      { return []*Value{o.Object} }
func (o *ObjectCastInstruction) SetOperand(_ int, v *Value) { o.Object = v }
func (o *ObjectCastInstruction) IsTerminator() bool         { return false }

func (s *StructInstruction) GetResult() *Value              { return s.Result }
func (s *StructInstruction) GetOperands() []*Value          { return s.Fields }
func (s *StructInstruction) SetOperand(index int, v *Value) { s.Fields[index] = v }
func (s *StructInstruction) IsTerminator() bool             { return false }

func (s *StructExtractInstruction) GetResult() *Value          { return s.Result }
func (s *StructExtractInstruction) GetOperands() []*Value      { return []*Value{s.Aggregate} }
func (s *StructExtractInstruction) SetOperand(_ int, v *Value) { s.Aggregate = v }
func (s *StructExtractInstruction) IsTerminator() bool         { return false }

func (p *PhiInstruction) GetResult() *Value              { return p.Result }
func (p *PhiInstruction) GetOperands() []*Value          { return p.Inputs }
func (p *PhiInstruction) SetOperand(index int, v *Value) { p.Inputs[index] = v }
func (p *PhiInstruction) IsTerminator() bool             { return false }

func (c *ConstantInstruction) GetResult() *Value      { return c.Result }
func (c *ConstantInstruction) GetOperands() []*Value  { return nil }
func (c *ConstantInstruction) SetOperand(int, *Value) {}
func (c *ConstantInstruction) IsTerminator() bool     { return false }

// Terminator implementations

func (r *ReturnTerminator) GetResult() *Value { return nil }
func (r *ReturnTerminator) GetOperands() []*Value {
	if r.Value != nil {
		return []*Value{r.Value}
	}
	return nil
}
func (r *ReturnTerminator) SetOperand(_ int, v *Value)   { r.Value = v }
func (r *ReturnTerminator) IsTerminator() bool           { return true }
func (r *ReturnTerminator) GetSuccessors() []*BasicBlock { return nil }
func (r *ReturnTerminator) IsFunctionExiting() bool      { return true }

func (t *ThrowTerminator) GetResult() *Value            { return nil }
func (t *ThrowTerminator) GetOperands() []*Value        { return []*Value{t.Error} }
func (t *ThrowTerminator) SetOperand(_ int, v *Value)   { t.Error = v }
func (t *ThrowTerminator) IsTerminator() bool           { return true }
func (t *ThrowTerminator) GetSuccessors() []*BasicBlock { return nil }
func (t *ThrowTerminator) IsFunctionExiting() bool      { return true }

func (u *UnreachableTerminator) GetResult() *Value            { return nil }
func (u *UnreachableTerminator) GetOperands() []*Value        { return nil }
func (u *UnreachableTerminator) SetOperand(int, *Value)       {}
func (u *UnreachableTerminator) IsTerminator() bool           { return true }
func (u *UnreachableTerminator) GetSuccessors() []*BasicBlock { return nil }
func (u *UnreachableTerminator) IsFunctionExiting() bool      { return false }

func (b *BranchTerminator) GetResult() *Value          { return nil }
func (b *BranchTerminator) GetOperands() []*Value      { return []*Value{b.Condition} }
func (b *BranchTerminator) SetOperand(_ int, v *Value) { b.Condition = v }
func (b *BranchTerminator) IsTerminator() bool         { return true }
func (b *BranchTerminator) GetSuccessors() []*BasicBlock {
	return []*BasicBlock{b.TrueBlock, b.FalseBlock}
}
func (b *BranchTerminator) IsFunctionExiting() bool { return false }

func (j *JumpTerminator) GetResult() *Value            { return nil }
func (j *JumpTerminator) GetOperands() []*Value        { return nil }
func (j *JumpTerminator) SetOperand(int, *Value)       {}
func (j *JumpTerminator) IsTerminator() bool           { return true }
func (j *JumpTerminator) GetSuccessors() []*BasicBlock { return []*BasicBlock{j.Target} }
func (j *JumpTerminator) IsFunctionExiting() bool      { return false }

// Types

type Type interface {
	String() string
}

// AddressType is the type of a value that denotes storage holding Elem
type AddressType struct {
	Elem Type
}

// NamedType is a nominal value type (struct, class reference, enum)
type NamedType struct {
	Name string
}

type RawPointerType struct{}

type FunctionType struct{}

type IntType struct {
	Bits int
}

type BoolType struct{}

func (a *AddressType) String() string    { return "*" + a.Elem.String() }
func (n *NamedType) String() string      { return n.Name }
func (r *RawPointerType) String() string { return "RawPointer" }
func (f *FunctionType) String() string   { return "Function" }
func (i *IntType) String() string        { return fmt.Sprintf("Int%d", i.Bits) }
func (b *BoolType) String() string       { return "Bool" }

// IsAddress reports whether t is an address type
func IsAddress(t Type) bool {
	_, ok := t.(*AddressType)
	return ok
}

// ObjectType strips one level of address from t
func ObjectType(t Type) Type {
	if a, ok := t.(*AddressType); ok {
		return a.Elem
	}
	return t
}

// ParseType maps a textual type name to a Type
func ParseType(address bool, name string) Type {
	var t Type
	switch {
	case name == "RawPointer":
		t = &RawPointerType{}
	case name == "Function":
		t = &FunctionType{}
	case name == "Bool":
		t = &BoolType{}
	case strings.HasPrefix(name, "Int"):
		var bits int
		if _, err := fmt.Sscanf(name, "Int%d", &bits); err == nil && bits > 0 {
			t = &IntType{Bits: bits}
		} else {
			t = &NamedType{Name: name}
		}
	default:
		t = &NamedType{Name: name}
	}
	if address {
		return &AddressType{Elem: t}
	}
	return t
}
