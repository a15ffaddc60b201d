package stackprotect

import (
	"stackprot/internal/ir"
)

// moveScopeToTemporary lets the accesses of a modify scope operate on a
// fresh stack temporary instead of the original storage. The value is moved
// into the temporary right after begin_access and moved back before every
// end_access. An overflow then hits the protected frame of this function.
//
// The temporary is allocated inside the scope, so allocations made between
// begin_access and end_access may no longer nest; the caller must repair
// stack nesting afterward.
func moveScopeToTemporary(scope *ir.BeginScopedAccessInstruction) bool {
	if scope.Kind != ir.AccessModify {
		return false
	}
	fn := scope.GetBlock().Function
	ends := scope.EndInstructions()

	in := ir.After(scope)
	tmp := in.CreateStackAllocate(ir.ObjectType(scope.Result.Type))
	copyIn := in.CreateCopyAddress(scope.Result, tmp.Result, true, true)

	ir.ReplaceAllUsesExcept(fn, scope.Result, tmp.Result, func(inst ir.Instruction) bool {
		if inst == copyIn {
			return true
		}
		_, isEnd := inst.(*ir.EndScopedAccessInstruction)
		return isEnd
	})

	for _, end := range ends {
		out := ir.Before(end)
		out.CreateCopyAddress(tmp.Result, scope.Result, true, true)
		out.CreateDeallocateStack(tmp.Result)
	}

	fn.SetNeedsStackProtection()
	return true
}

// moveArgumentToTemporary does the same for an in-out argument for the whole
// function body. The temporary is the outermost allocation of the function,
// so nesting is preserved.
func moveArgumentToTemporary(arg *ir.Argument) bool {
	if !arg.Convention.IsInout() {
		return false
	}
	fn := arg.Function
	entry := fn.Entry()
	if entry == nil {
		return false
	}

	in := ir.AtStart(entry)
	tmp := in.CreateStackAllocate(ir.ObjectType(arg.Value.Type))
	copyIn := in.CreateCopyAddress(arg.Value, tmp.Result, true, true)

	ir.ReplaceAllUsesExcept(fn, arg.Value, tmp.Result, func(inst ir.Instruction) bool {
		return inst == copyIn
	})

	for _, block := range fn.Blocks {
		if block.Terminator == nil || !block.Terminator.IsFunctionExiting() {
			continue
		}
		out := ir.AtEnd(block)
		out.CreateCopyAddress(tmp.Result, arg.Value, true, true)
		out.CreateDeallocateStack(tmp.Result)
	}

	fn.SetNeedsStackProtection()
	return true
}
