package ir

import (
	"testing"
)

func TestNewValueIDsAreModuleUnique(t *testing.T) {
	module := NewModule("m")
	f := module.NewFunction("f", false)
	g := module.NewFunction("g", false)

	a := f.AddParam("a", ConventionIndirectInout, &AddressType{Elem: &NamedType{Name: "Buffer"}})
	b := g.AddParam("a", ConventionIndirectInout, &AddressType{Elem: &NamedType{Name: "Buffer"}})

	if a.Value.ID == b.Value.ID {
		t.Error("Values of different functions must have distinct IDs")
	}
	if module.MaxValueID() < b.Value.ID {
		t.Error("MaxValueID should cover every allocated value")
	}
	if a.Value.Arg != a || a.Value.Function() != f {
		t.Error("Argument values should point back to their argument")
	}
}

func TestSetNeedsStackProtectionIsMonotonic(t *testing.T) {
	fn := NewModule("m").NewFunction("f", false)

	if fn.NeedsStackProtection() {
		t.Fatal("New functions should not need stack protection")
	}
	if !fn.SetNeedsStackProtection() {
		t.Error("First set should report a change")
	}
	if fn.SetNeedsStackProtection() {
		t.Error("Second set should report no change")
	}
	if !fn.NeedsStackProtection() {
		t.Error("Flag must stay set")
	}
}

func TestUsesAndReplace(t *testing.T) {
	module := mustParse(t, `
module demo

func @f(%buf: inout *Buffer) {
bb0:
  %v = load %buf
  store %v, %buf
  %p = address_to_pointer %buf
  return
}
`)
	fn := module.LookupFunction("f")
	buf := fn.Params[0].Value

	uses := Uses(fn, buf)
	if len(uses) != 3 {
		t.Fatalf("Expected 3 uses of %%buf, got %d", len(uses))
	}
	if uses[1].Index != 1 {
		t.Errorf("store uses %%buf as operand 1, got %d", uses[1].Index)
	}

	replacement := module.NewValue("tmp", buf.Type)
	keepStore := func(inst Instruction) bool {
		_, ok := inst.(*StoreInstruction)
		return ok
	}
	if n := ReplaceAllUsesExcept(fn, buf, replacement, keepStore); n != 2 {
		t.Errorf("Expected 2 redirected uses, got %d", n)
	}
	if len(Uses(fn, buf)) != 1 {
		t.Error("Only the store should still use the argument")
	}
	if len(Uses(fn, replacement)) != 2 {
		t.Error("load and address_to_pointer should use the replacement")
	}
}

func TestInserterPositions(t *testing.T) {
	module := NewModule("m")
	fn := module.NewFunction("f", false)
	block := fn.AddBlock("bb0")

	end := AtEnd(block)
	first := end.CreateStackAllocate(&NamedType{Name: "A"})
	ret := end.CreateReturn(nil)
	last := AtEnd(block).CreateDeallocateStack(first.Result)

	before := Before(last).CreateStackAllocate(&NamedType{Name: "B"})
	after := After(first).CreateStackAllocate(&NamedType{Name: "C"})
	start := AtStart(block).CreateConstant(1, &IntType{Bits: 64})

	want := []Instruction{start, first, after, before, last}
	if len(block.Instructions) != len(want) {
		t.Fatalf("Expected %d instructions, got %d", len(want), len(block.Instructions))
	}
	for i, inst := range want {
		if block.Instructions[i] != inst {
			t.Errorf("Instruction %d = %s, want %s", i, block.Instructions[i], inst)
		}
	}
	if block.Terminator != ret {
		t.Error("Terminator should be unchanged")
	}

	seen := make(map[int]bool)
	for _, inst := range block.AllInstructions() {
		if inst.GetBlock() != block {
			t.Errorf("%s should belong to bb0", inst)
		}
		if seen[inst.GetID()] {
			t.Errorf("Duplicate instruction ID %d", inst.GetID())
		}
		seen[inst.GetID()] = true
	}
}

func TestRemove(t *testing.T) {
	module := NewModule("m")
	fn := module.NewFunction("f", false)
	block := fn.AddBlock("bb0")
	in := AtEnd(block)
	alloc := in.CreateStackAllocate(&NamedType{Name: "A"})
	dealloc := in.CreateDeallocateStack(alloc.Result)
	in.CreateReturn(nil)

	Remove(dealloc)
	if len(block.Instructions) != 1 || block.Instructions[0] != alloc {
		t.Error("Remove should delete only the dealloc_stack")
	}
	if dealloc.GetBlock() != nil {
		t.Error("Removed instruction should be detached")
	}
}

func TestPredecessors(t *testing.T) {
	module := mustParse(t, `
module demo

func @f(%c: Bool) {
bb0:
  cond_br %c, bb1, bb2
bb1:
  br bb2
bb2:
  return
}
`)
	fn := module.LookupFunction("f")
	preds := fn.LookupBlock("bb2").Predecessors()
	if len(preds) != 2 {
		t.Fatalf("bb2 should have 2 predecessors, got %d", len(preds))
	}
	if len(fn.Entry().Predecessors()) != 0 {
		t.Error("Entry block should have no predecessors")
	}
}
