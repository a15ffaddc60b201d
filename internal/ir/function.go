package ir

import (
	"fmt"
	"slices"
)

// Use is one operand slot of an instruction referring to a value
type Use struct {
	Value *Value
	User  Instruction
	Index int
}

// NewModule creates an empty module
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// NewFunction creates a function with the given parameters and adds it to the module
func (m *Module) NewFunction(name string, public bool) *Function {
	fn := &Function{Name: name, Public: public, Module: m}
	m.Functions = append(m.Functions, fn)
	return fn
}

// LookupFunction finds a function by name
func (m *Module) LookupFunction(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// LookupGlobal finds a global by name
func (m *Module) LookupGlobal(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// NewValue allocates a fresh value with a module-unique ID. An empty name
// gets a generated one.
func (m *Module) NewValue(name string, t Type) *Value {
	m.nextValueID++
	if name == "" {
		name = fmt.Sprintf("tmp.%d", m.nextValueID)
	}
	return &Value{ID: m.nextValueID, Name: name, Type: t}
}

// MaxValueID returns the largest value ID handed out so far
func (m *Module) MaxValueID() int { return m.nextValueID }

// AddParam appends a parameter to the function signature
func (f *Function) AddParam(name string, convention Convention, t Type) *Argument {
	arg := &Argument{
		Index:      len(f.Params),
		Name:       name,
		Convention: convention,
		Function:   f,
	}
	arg.Value = f.Module.NewValue(name, t)
	arg.Value.Arg = arg
	f.Params = append(f.Params, arg)
	return arg
}

// AddBlock appends a new empty block
func (f *Function) AddBlock(label string) *BasicBlock {
	block := &BasicBlock{Label: label, Function: f}
	f.Blocks = append(f.Blocks, block)
	return block
}

// LookupBlock finds a block by label
func (f *Function) LookupBlock(label string) *BasicBlock {
	for _, block := range f.Blocks {
		if block.Label == label {
			return block
		}
	}
	return nil
}

// Instructions returns a snapshot of all instructions of the function in
// program order, terminators included. Mutating the function while iterating
// over the snapshot is safe.
func (f *Function) Instructions() []Instruction {
	var insts []Instruction
	for _, block := range f.Blocks {
		insts = append(insts, block.Instructions...)
		if block.Terminator != nil {
			insts = append(insts, block.Terminator)
		}
	}
	return insts
}

// AllInstructions returns every instruction of the block including the terminator
func (b *BasicBlock) AllInstructions() []Instruction {
	insts := slices.Clone(b.Instructions)
	if b.Terminator != nil {
		insts = append(insts, b.Terminator)
	}
	return insts
}

// Predecessors computes the predecessor blocks of b
func (b *BasicBlock) Predecessors() []*BasicBlock {
	var preds []*BasicBlock
	for _, block := range b.Function.Blocks {
		if block.Terminator == nil {
			continue
		}
		if slices.Contains(block.Terminator.GetSuccessors(), b) {
			preds = append(preds, block)
		}
	}
	return preds
}

// Uses returns every operand slot in fn that refers to v
func Uses(fn *Function, v *Value) []Use {
	var uses []Use
	for _, inst := range fn.Instructions() {
		for i, op := range inst.GetOperands() {
			if op == v {
				uses = append(uses, Use{Value: v, User: inst, Index: i})
			}
		}
	}
	return uses
}

// ReplaceAllUsesExcept redirects every use of old to replacement, skipping
// users for which keep returns true. Returns the number of redirected uses.
func ReplaceAllUsesExcept(fn *Function, old, replacement *Value, keep func(Instruction) bool) int {
	count := 0
	for _, use := range Uses(fn, old) {
		if keep != nil && keep(use.User) {
			continue
		}
		use.User.SetOperand(use.Index, replacement)
		count++
	}
	return count
}

// ReplaceAllUses redirects every use of old to replacement
func ReplaceAllUses(fn *Function, old, replacement *Value) int {
	return ReplaceAllUsesExcept(fn, old, replacement, nil)
}

// indexOf returns the position of inst in the block's instruction list, or -1
// (also for the terminator).
func (b *BasicBlock) indexOf(inst Instruction) int {
	return slices.Index(b.Instructions, inst)
}

// Remove deletes a non-terminator instruction from its block
func Remove(inst Instruction) {
	block := inst.GetBlock()
	if block == nil {
		return
	}
	if i := block.indexOf(inst); i >= 0 {
		block.Instructions = slices.Delete(block.Instructions, i, i+1)
	}
	inst.setBlock(nil)
}
