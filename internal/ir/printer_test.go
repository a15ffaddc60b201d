package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const roundTripSource = `module demo

global @counter : Int64

table @vtable { @callee }

func @callee(%buf: inout *Buffer, %n: value Int64, %c: value Bool) {
bb0:
  %s = begin_access [modify] %buf
  %p = address_to_pointer [flagged] %s
  end_access %s
  cond_br %c, bb1, bb2
bb1:
  br bb3
bb2:
  br bb3
bb3:
  %m = phi Int64 { bb1: %n, bb2: %n }
  return %m
}

public func @caller(%c: value Bool) [stack_protection] {
bb0:
  %a = stack_alloc Buffer
  %b = stack_alloc Buffer
  %f = function_ref @callee
  %k = integer_literal 4 : Int64
  %r = call %f(%a, %k, %c) : Int64
  %o = alloc_object [stack] Node
  %t = tail_addr %o : *Int8
  %i = index_addr [flagged] %t, %k
  %fa = field_addr %o, data : *Int64
  %e = struct_element_addr %a, len : *Int64
  %ac = addr_cast %e, *Int8
  %raw = address_to_pointer %ac
  %back = pointer_to_address %raw, *Int8
  %g = global_addr @counter
  %v = load %g
  store %v, %fa
  copy_addr [take, init] %a, %b
  %st = struct %o, %v : Pair
  %x = struct_extract %st, first : Node
  %oc = object_cast %x, Base
  %h = alloc_box Buffer
  %y = begin_apply %f(%h, %k, %c) : *Int64
  %pa = partial_apply %f(%c)
  %sz = builtin_stack_alloc %k
  dealloc_stack %b
  dealloc_stack %a
  return
}
`

func TestNewPrinter(t *testing.T) {
	printer := NewPrinter()

	if printer == nil {
		t.Fatal("NewPrinter should not return nil")
	}

	if printer.indent != 0 {
		t.Errorf("NewPrinter should have indent 0, got %d", printer.indent)
	}

	if printer.output.Len() != 0 {
		t.Error("NewPrinter should have empty output buffer")
	}
}

func TestPrintRoundTrip(t *testing.T) {
	module := mustParse(t, roundTripSource)

	printed := Print(module)
	if diff := cmp.Diff(roundTripSource, printed); diff != "" {
		t.Errorf("printed module differs from source (-want +got):\n%s", diff)
	}

	// Printing the reparsed module must be stable
	reparsed := mustParse(t, printed)
	if diff := cmp.Diff(printed, Print(reparsed)); diff != "" {
		t.Errorf("second round trip differs (-want +got):\n%s", diff)
	}
}

func TestPrintGeneratedNames(t *testing.T) {
	module := NewModule("gen")
	fn := module.NewFunction("f", false)
	block := fn.AddBlock("bb0")
	in := AtEnd(block)
	alloc := in.CreateStackAllocate(&NamedType{Name: "Buffer"})
	in.CreateDeallocateStack(alloc.Result)
	in.CreateReturn(nil)

	printed := PrintFunction(fn)
	if !strings.Contains(printed, "%tmp.") {
		t.Errorf("Generated values should print with a tmp. prefix:\n%s", printed)
	}

	// Generated names are valid textual IR
	mustParse(t, "module gen\n\n"+printed)
}

func TestInstructionStrings(t *testing.T) {
	a := &Value{Name: "a", Type: &AddressType{Elem: &NamedType{Name: "Buffer"}}}
	b := &Value{Name: "b", Type: &AddressType{Elem: &NamedType{Name: "Buffer"}}}
	p := &Value{Name: "p", Type: &RawPointerType{}}

	tests := []struct {
		inst Instruction
		want string
	}{
		{&AddressToRawPointerInstruction{Result: p, Address: a, Flagged: true}, "%p = address_to_pointer [flagged] %a"},
		{&AddressToRawPointerInstruction{Result: p, Address: a}, "%p = address_to_pointer %a"},
		{&CopyAddressInstruction{From: a, To: b, TakeSource: true}, "copy_addr [take] %a, %b"},
		{&CopyAddressInstruction{From: a, To: b, InitializeDest: true}, "copy_addr [init] %a, %b"},
		{&CopyAddressInstruction{From: a, To: b}, "copy_addr %a, %b"},
		{&DeallocateStackInstruction{Address: a}, "dealloc_stack %a"},
		{&ReturnTerminator{}, "return"},
		{&UnreachableTerminator{}, "unreachable"},
		{&ThrowTerminator{Error: p}, "throw %p"},
	}

	for _, tt := range tests {
		if got := tt.inst.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
