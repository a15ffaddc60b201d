package ir

import (
	"testing"

	"stackprot/internal/errors"
)

func mustParse(t *testing.T, source string) *Module {
	t.Helper()
	module, diags := ParseModule("test.sir", source)
	for _, d := range diags {
		if d.Level == errors.Error {
			t.Fatalf("unexpected diagnostic: %s", d.Error())
		}
	}
	return module
}

func diagnosticCodes(diags []errors.CompilerError) []string {
	codes := make([]string, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	return codes
}

func hasCode(diags []errors.CompilerError, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// ============================================================================
// Builder Basic Tests
// ============================================================================

func TestNewBuilder(t *testing.T) {
	builder := NewBuilder()
	if builder == nil {
		t.Fatal("NewBuilder should not return nil")
	}
}

func TestBuildSimpleFunction(t *testing.T) {
	module := mustParse(t, `
module demo

func @f(%buf: inout *Buffer, %n: Int64, %p: *Int64) {
bb0:
  %a = stack_alloc Buffer
  %r = address_to_pointer [flagged] %buf
  dealloc_stack %a
  return
}
`)

	if module.Name != "demo" {
		t.Errorf("Expected module name demo, got %s", module.Name)
	}
	fn := module.LookupFunction("f")
	if fn == nil {
		t.Fatal("Function f not found")
	}
	if fn.Public {
		t.Error("Function f should not be public")
	}

	if len(fn.Params) != 3 {
		t.Fatalf("Expected 3 params, got %d", len(fn.Params))
	}
	if fn.Params[0].Convention != ConventionIndirectInout {
		t.Errorf("Expected inout, got %s", fn.Params[0].Convention)
	}
	if fn.Params[1].Convention != ConventionDirect {
		t.Errorf("Non-address params default to value, got %s", fn.Params[1].Convention)
	}
	if fn.Params[2].Convention != ConventionIndirectIn {
		t.Errorf("Address params default to in, got %s", fn.Params[2].Convention)
	}

	entry := fn.Entry()
	if entry == nil || entry.Label != "bb0" {
		t.Fatal("Expected entry block bb0")
	}
	if len(entry.Instructions) != 3 {
		t.Fatalf("Expected 3 instructions, got %d", len(entry.Instructions))
	}

	alloc, ok := entry.Instructions[0].(*StackAllocateInstruction)
	if !ok {
		t.Fatalf("Expected stack_alloc, got %T", entry.Instructions[0])
	}
	if alloc.Result.Name != "a" || alloc.Result.Type.String() != "*Buffer" {
		t.Errorf("Unexpected stack_alloc result %s : %s", alloc.Result, alloc.Result.Type)
	}

	a2p, ok := entry.Instructions[1].(*AddressToRawPointerInstruction)
	if !ok {
		t.Fatalf("Expected address_to_pointer, got %T", entry.Instructions[1])
	}
	if !a2p.Flagged {
		t.Error("address_to_pointer should be flagged")
	}
	if a2p.Address != fn.Params[0].Value {
		t.Error("address_to_pointer should use the first argument")
	}

	if _, ok := entry.Terminator.(*ReturnTerminator); !ok {
		t.Errorf("Expected return terminator, got %T", entry.Terminator)
	}
}

func TestBuildForwardBranchAndPhi(t *testing.T) {
	module := mustParse(t, `
module demo

func @f(%c: Bool) {
bb0:
  cond_br %c, bb1, bb2
bb1:
  %x = alloc_object Node
  br bb3
bb2:
  %y = alloc_object [stack] Node
  br bb3
bb3:
  %z = phi Node { bb1: %x, bb2: %y }
  return
}
`)

	fn := module.LookupFunction("f")
	if len(fn.Blocks) != 4 {
		t.Fatalf("Expected 4 blocks, got %d", len(fn.Blocks))
	}

	branch, ok := fn.Blocks[0].Terminator.(*BranchTerminator)
	if !ok {
		t.Fatalf("Expected cond_br, got %T", fn.Blocks[0].Terminator)
	}
	if branch.TrueBlock != fn.Blocks[1] || branch.FalseBlock != fn.Blocks[2] {
		t.Error("cond_br targets resolved incorrectly")
	}

	phi, ok := fn.Blocks[3].Instructions[0].(*PhiInstruction)
	if !ok {
		t.Fatalf("Expected phi, got %T", fn.Blocks[3].Instructions[0])
	}
	if len(phi.Inputs) != 2 || phi.Inputs[0].Name != "x" || phi.Inputs[1].Name != "y" {
		t.Errorf("Unexpected phi inputs %v", phi.Inputs)
	}

	stackObj := fn.Blocks[2].Instructions[0].(*ObjectAllocateInstruction)
	if !stackObj.StackEligible {
		t.Error("alloc_object [stack] should be stack eligible")
	}
}

func TestBuildPhiForwardReference(t *testing.T) {
	module := mustParse(t, `
module demo

func @loop(%c: Bool) {
bb0:
  %init = alloc_object Node
  br bb1
bb1:
  %cur = phi Node { bb0: %init, bb1: %next }
  %next = object_cast %cur, Node
  cond_br %c, bb1, bb2
bb2:
  return
}
`)

	fn := module.LookupFunction("loop")
	phi := fn.Blocks[1].Instructions[0].(*PhiInstruction)
	cast := fn.Blocks[1].Instructions[1].(*ObjectCastInstruction)
	if phi.Inputs[1] != cast.Result {
		t.Error("Forward phi input should resolve to the later definition")
	}
}

func TestBuildCallsAndTables(t *testing.T) {
	module := mustParse(t, `
module demo

global @counter : Int64

table @vtable { @callee }

public func @caller() [stack_protection] {
bb0:
  %a = stack_alloc Buffer
  %f = function_ref @callee
  %r = call %f(%a) : Int64
  %y = begin_apply %f(%a) : *Int64
  %pa = partial_apply %f(%a)
  %g = global_addr @counter
  dealloc_stack %a
  return
}

func @callee(%b: inout *Buffer) {
bb0:
  return
}
`)

	caller := module.LookupFunction("caller")
	callee := module.LookupFunction("callee")
	if !caller.Public {
		t.Error("caller should be public")
	}
	if !caller.NeedsStackProtection() {
		t.Error("stack_protection attribute should set the flag")
	}

	if len(module.Tables) != 1 || module.Tables[0].Functions[0] != callee {
		t.Error("Table should reference callee")
	}
	if g := module.LookupGlobal("counter"); g == nil || g.Type.String() != "Int64" {
		t.Error("Global counter should be declared with type Int64")
	}

	ref := caller.Entry().Instructions[1].(*FunctionReferenceInstruction)
	if ref.Function != callee {
		t.Error("function_ref should resolve functions declared later")
	}

	call := caller.Entry().Instructions[2].(*CallInstruction)
	if call.Result == nil || call.Result.Type.String() != "Int64" {
		t.Error("call result type should come from the annotation")
	}
	if len(call.Args) != 1 || call.Args[0].Name != "a" {
		t.Error("call should pass the stack allocation")
	}

	apply := caller.Entry().Instructions[3].(*BeginApplyInstruction)
	if !IsAddress(apply.Result.Type) {
		t.Error("begin_apply should yield an address")
	}
}

func TestBuildCallWithoutResult(t *testing.T) {
	module := mustParse(t, `
module demo

func @g() {
bb0:
  return
}

func @f() {
bb0:
  %f = function_ref @g
  call %f()
  return
}
`)

	call := module.LookupFunction("f").Entry().Instructions[1].(*CallInstruction)
	if call.Result != nil {
		t.Error("call without a result binding should produce no value")
	}
}

// ============================================================================
// Builder Diagnostics
// ============================================================================

func TestBuildUndefinedValue(t *testing.T) {
	_, diags := ParseModule("test.sir", `
module demo

func @f() {
bb0:
  %v = load %missing
  return
}
`)
	if !hasCode(diags, errors.ErrorUndefinedValue) {
		t.Errorf("Expected undefined value error, got %v", diagnosticCodes(diags))
	}
}

func TestBuildUnknownOpcode(t *testing.T) {
	_, diags := ParseModule("test.sir", `
module demo

func @f() {
bb0:
  %a = stack_aloc Buffer
  return
}
`)
	if !hasCode(diags, errors.ErrorUnknownOpcode) {
		t.Fatalf("Expected unknown opcode error, got %v", diagnosticCodes(diags))
	}
	if len(diags[0].Suggestions) == 0 {
		t.Error("Expected a did-you-mean suggestion")
	}
}

func TestBuildMissingTerminator(t *testing.T) {
	_, diags := ParseModule("test.sir", `
module demo

func @f() {
bb0:
  %a = stack_alloc Buffer
}
`)
	if !hasCode(diags, errors.ErrorMissingTerminator) {
		t.Errorf("Expected missing terminator error, got %v", diagnosticCodes(diags))
	}
}

func TestBuildExpectedAddress(t *testing.T) {
	_, diags := ParseModule("test.sir", `
module demo

func @f(%n: Int64) {
bb0:
  %p = address_to_pointer [flagged] %n
  return
}
`)
	if !hasCode(diags, errors.ErrorExpectedAddress) {
		t.Errorf("Expected address error, got %v", diagnosticCodes(diags))
	}
	if hasCode(diags, errors.ErrorInvalidOperands) {
		t.Error("A precise diagnostic should suppress the generic operand error")
	}
}

func TestBuildDuplicates(t *testing.T) {
	_, diags := ParseModule("test.sir", `
module demo

func @f() {
bb0:
  %a = stack_alloc Buffer
  %a = stack_alloc Buffer
  return
}

func @f() {
bb0:
  return
}
`)
	if !hasCode(diags, errors.ErrorDuplicateValue) {
		t.Errorf("Expected duplicate value error, got %v", diagnosticCodes(diags))
	}
	if !hasCode(diags, errors.ErrorDuplicateDeclaration) {
		t.Errorf("Expected duplicate declaration error, got %v", diagnosticCodes(diags))
	}
}

func TestBuildUndefinedBlock(t *testing.T) {
	_, diags := ParseModule("test.sir", `
module demo

func @f() {
bb0:
  br bb7
}
`)
	if !hasCode(diags, errors.ErrorUndefinedBlock) {
		t.Errorf("Expected undefined block error, got %v", diagnosticCodes(diags))
	}
}

func TestBuildUnknownFlagIsWarning(t *testing.T) {
	module, diags := ParseModule("test.sir", `
module demo

func @f(%a: *Buffer) {
bb0:
  %v = load [flagged] %a
  return
}
`)
	if module == nil {
		t.Fatal("Module should be built despite warnings")
	}
	if !hasCode(diags, errors.WarningUnknownFlag) {
		t.Errorf("Expected unknown flag warning, got %v", diagnosticCodes(diags))
	}
	if errors.HasErrors(diags) {
		t.Error("Unknown flags should not be errors")
	}
}

func TestParseModuleSyntaxError(t *testing.T) {
	module, diags := ParseModule("bad.sir", "module demo\nfunc @f( {\n")
	if module != nil {
		t.Error("Syntax errors should not produce a module")
	}
	if len(diags) != 1 || diags[0].Code != errors.ErrorSyntax {
		t.Fatalf("Expected one syntax diagnostic, got %v", diagnosticCodes(diags))
	}
	if diags[0].Position.Line != 2 {
		t.Errorf("Expected syntax error on line 2, got %d", diags[0].Position.Line)
	}
}
