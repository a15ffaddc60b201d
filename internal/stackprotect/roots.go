package stackprotect

import (
	"golang.org/x/tools/container/intsets"

	"stackprot/internal/ir"
)

// walkObjectRoots walks backward from obj through casts, aggregates and phis
// and calls visit for every value the object may originate from. visit
// returns false to abort the walk. The result is false if the walk was
// aborted.
func walkObjectRoots(obj *ir.Value, visit func(root *ir.Value) bool) bool {
	var visited intsets.Sparse
	stack := []*ir.Value{obj}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visited.Insert(v.ID) {
			continue
		}

		switch def := v.Def.(type) {
		case *ir.ObjectCastInstruction:
			stack = append(stack, def.Object)
		case *ir.StructExtractInstruction:
			stack = append(stack, def.Aggregate)
		case *ir.StructInstruction:
			stack = append(stack, def.Fields...)
		case *ir.PhiInstruction:
			stack = append(stack, def.Inputs...)
		case *ir.ConstantInstruction:
			// plain data, never an object
		default:
			if !visit(v) {
				return false
			}
		}
	}
	return true
}
