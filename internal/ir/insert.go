package ir

import "slices"

// Inserter creates instructions at an insertion point inside a block.
// Instructions are inserted in creation order.
type Inserter struct {
	block *BasicBlock
	index int // position in block.Instructions; len means "before terminator"
}

// AtEnd inserts before the block's terminator
func AtEnd(block *BasicBlock) *Inserter {
	return &Inserter{block: block, index: len(block.Instructions)}
}

// AtStart inserts at the beginning of the block
func AtStart(block *BasicBlock) *Inserter {
	return &Inserter{block: block, index: 0}
}

// Before inserts right before inst. inst may be a terminator.
func Before(inst Instruction) *Inserter {
	block := inst.GetBlock()
	if inst.IsTerminator() {
		return AtEnd(block)
	}
	return &Inserter{block: block, index: block.indexOf(inst)}
}

// After inserts right after inst, which must not be a terminator
func After(inst Instruction) *Inserter {
	block := inst.GetBlock()
	return &Inserter{block: block, index: block.indexOf(inst) + 1}
}

func (in *Inserter) module() *Module { return in.block.Function.Module }

func (in *Inserter) newValue(t Type, def Instruction) *Value {
	v := in.module().NewValue("", t)
	v.Def = def
	return v
}

func (in *Inserter) insert(inst Instruction) {
	m := in.module()
	m.nextInstID++
	inst.setID(m.nextInstID)
	inst.setBlock(in.block)
	in.block.Instructions = slices.Insert(in.block.Instructions, in.index, inst)
	in.index++
}

// SetTerminator installs the block terminator
func (in *Inserter) SetTerminator(term Terminator) Terminator {
	m := in.module()
	m.nextInstID++
	term.setID(m.nextInstID)
	term.setBlock(in.block)
	in.block.Terminator = term
	return term
}

func (in *Inserter) CreateStackAllocate(t Type) *StackAllocateInstruction {
	inst := &StackAllocateInstruction{Type: t}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateDeallocateStack(address *Value) *DeallocateStackInstruction {
	inst := &DeallocateStackInstruction{Address: address}
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateHeapBoxAllocate(t Type) *HeapBoxAllocateInstruction {
	inst := &HeapBoxAllocateInstruction{Type: t}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateGlobalAddress(g *Global) *GlobalAddressInstruction {
	inst := &GlobalAddressInstruction{Global: g}
	inst.Result = in.newValue(&AddressType{Elem: g.Type}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateObjectAllocate(class string, stackEligible bool) *ObjectAllocateInstruction {
	inst := &ObjectAllocateInstruction{Class: class, StackEligible: stackEligible}
	inst.Result = in.newValue(&NamedType{Name: class}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateFieldAddress(object *Value, field string, t Type) *FieldAddressInstruction {
	inst := &FieldAddressInstruction{Object: object, Field: field}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateTailElementAddress(object *Value, t Type) *TailElementAddressInstruction {
	inst := &TailElementAddressInstruction{Object: object}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateStructElementAddress(base *Value, field string, t Type) *StructElementAddressInstruction {
	inst := &StructElementAddressInstruction{Base: base, Field: field}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateAddressCast(address *Value, t Type) *AddressCastInstruction {
	inst := &AddressCastInstruction{Address: address}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateIndexAddress(base, offset *Value, flagged bool) *IndexAddressInstruction {
	inst := &IndexAddressInstruction{Base: base, Offset: offset, Flagged: flagged}
	inst.Result = in.newValue(base.Type, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateBeginScopedAccess(address *Value, kind AccessKind) *BeginScopedAccessInstruction {
	inst := &BeginScopedAccessInstruction{Address: address, Kind: kind}
	inst.Result = in.newValue(address.Type, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateEndScopedAccess(scope *Value) *EndScopedAccessInstruction {
	inst := &EndScopedAccessInstruction{Scope: scope}
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateAddressToRawPointer(address *Value, flagged bool) *AddressToRawPointerInstruction {
	inst := &AddressToRawPointerInstruction{Address: address, Flagged: flagged}
	inst.Result = in.newValue(&RawPointerType{}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateRawPointerToAddress(pointer *Value, t Type) *RawPointerToAddressInstruction {
	inst := &RawPointerToAddressInstruction{Pointer: pointer}
	inst.Result = in.newValue(&AddressType{Elem: t}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateStackAllocBuiltin(size *Value) *StackAllocBuiltinInstruction {
	inst := &StackAllocBuiltinInstruction{Size: size}
	inst.Result = in.newValue(&RawPointerType{}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateFunctionReference(fn *Function) *FunctionReferenceInstruction {
	inst := &FunctionReferenceInstruction{Function: fn}
	inst.Result = in.newValue(&FunctionType{}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateCall(callee *Value, args []*Value, result Type) *CallInstruction {
	inst := &CallInstruction{Callee: callee, Args: args}
	if result != nil {
		inst.Result = in.newValue(result, inst)
	}
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateBeginApply(callee *Value, args []*Value, yield Type) *BeginApplyInstruction {
	inst := &BeginApplyInstruction{Callee: callee, Args: args}
	inst.Result = in.newValue(&AddressType{Elem: yield}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreatePartialApply(callee *Value, args []*Value) *PartialApplyInstruction {
	inst := &PartialApplyInstruction{Callee: callee, Args: args}
	inst.Result = in.newValue(&FunctionType{}, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateCopyAddress(from, to *Value, takeSource, initializeDest bool) *CopyAddressInstruction {
	inst := &CopyAddressInstruction{From: from, To: to, TakeSource: takeSource, InitializeDest: initializeDest}
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateLoad(address *Value) *LoadInstruction {
	inst := &LoadInstruction{Address: address}
	inst.Result = in.newValue(ObjectType(address.Type), inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateStore(value, address *Value) *StoreInstruction {
	inst := &StoreInstruction{Value: value, Address: address}
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateObjectCast(object *Value, t Type) *ObjectCastInstruction {
	inst := &ObjectCastInstruction{Object: object}
	inst.Result = in.newValue(t, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateStruct(fields []*Value, t Type) *StructInstruction {
	inst := &StructInstruction{Fields: fields}
	inst.Result = in.newValue(t, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateStructExtract(aggregate *Value, field string, t Type) *StructExtractInstruction {
	inst := &StructExtractInstruction{Aggregate: aggregate, Field: field}
	inst.Result = in.newValue(t, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreatePhi(blocks []*BasicBlock, inputs []*Value, t Type) *PhiInstruction {
	inst := &PhiInstruction{Blocks: blocks, Inputs: inputs}
	inst.Result = in.newValue(t, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateConstant(value int64, t Type) *ConstantInstruction {
	inst := &ConstantInstruction{Value: value}
	inst.Result = in.newValue(t, inst)
	in.insert(inst)
	return inst
}

func (in *Inserter) CreateReturn(value *Value) *ReturnTerminator {
	term := &ReturnTerminator{Value: value}
	in.SetTerminator(term)
	return term
}

func (in *Inserter) CreateThrow(err *Value) *ThrowTerminator {
	term := &ThrowTerminator{Error: err}
	in.SetTerminator(term)
	return term
}

func (in *Inserter) CreateUnreachable() *UnreachableTerminator {
	term := &UnreachableTerminator{}
	in.SetTerminator(term)
	return term
}

func (in *Inserter) CreateBranch(cond *Value, ifTrue, ifFalse *BasicBlock) *BranchTerminator {
	term := &BranchTerminator{Condition: cond, TrueBlock: ifTrue, FalseBlock: ifFalse}
	in.SetTerminator(term)
	return term
}

func (in *Inserter) CreateJump(target *BasicBlock) *JumpTerminator {
	term := &JumpTerminator{Target: target}
	in.SetTerminator(term)
	return term
}
