package stackprotect

import (
	"golang.org/x/tools/container/intsets"

	"stackprot/internal/accessbase"
	"stackprot/internal/funcuses"
	"stackprot/internal/ir"
)

// argumentWorklist finds out where the storage passed to an argument comes
// from by following the argument to every call site of its function.
//
// Resolution fails as soon as anything is not understood: a function with
// unknown callers, a function value that escapes, an address of unknown
// origin. Functions that must be protected are only staged, and the staged
// set is meaningful only when resolve returns true.
type argumentWorklist struct {
	index func() *funcuses.Index

	handled intsets.Sparse
	queue   []*ir.Argument
	// parent is the argument whose resolution pushed the key
	parent map[*ir.Argument]*ir.Argument

	staged   []*ir.Function
	isStaged map[*ir.Function]bool
}

func newArgumentWorklist(index func() *funcuses.Index) *argumentWorklist {
	return &argumentWorklist{
		index:    index,
		parent:   make(map[*ir.Argument]*ir.Argument),
		isStaged: make(map[*ir.Function]bool),
	}
}

// push enqueues arg once. via is the argument whose call sites led to arg,
// nil for the starting arguments.
func (w *argumentWorklist) push(arg, via *ir.Argument) {
	if !w.handled.Insert(arg.Value.ID) {
		return
	}
	w.parent[arg] = via
	w.queue = append(w.queue, arg)
}

// pushRootsOf walks the roots of the object obj defined in owner. Arguments
// among the roots are pushed, a stack promoted allocation stages owner.
func (w *argumentWorklist) pushRootsOf(obj *ir.Value, owner *ir.Function, via *ir.Argument) bool {
	return walkObjectRoots(obj, func(root *ir.Value) bool {
		if root.Arg != nil {
			w.push(root.Arg, via)
			return true
		}
		alloc, ok := root.Def.(*ir.ObjectAllocateInstruction)
		if !ok {
			return false
		}
		if alloc.StackEligible {
			w.stage(owner, via)
		}
		return true
	})
}

// stage records fn and every function on the propagation chain of via
func (w *argumentWorklist) stage(fn *ir.Function, via *ir.Argument) {
	w.add(fn)
	for arg := via; arg != nil; arg = w.parent[arg] {
		w.add(arg.Function)
	}
}

func (w *argumentWorklist) add(fn *ir.Function) {
	if w.isStaged[fn] {
		return
	}
	w.isStaged[fn] = true
	w.staged = append(w.staged, fn)
}

// resolve drains the worklist. It returns false if the origin of any pushed
// argument could not be determined.
func (w *argumentWorklist) resolve() bool {
	for len(w.queue) > 0 {
		arg := w.queue[0]
		w.queue = w.queue[1:]

		callee := arg.Function
		uses := w.index().Get(callee)
		if uses.HasUnknownUses {
			return false
		}

		for _, ref := range uses.Refs {
			caller := ref.GetBlock().Function
			for _, use := range ir.Uses(caller, ref.Result) {
				site, ok := use.User.(ir.ApplySite)
				if !ok || use.Index != 0 {
					return false
				}
				actual, ok := site.CallerArgument(arg.Index, len(callee.Params))
				if !ok {
					return false
				}
				if !w.resolveActual(actual, caller, arg) {
					return false
				}
			}
		}
	}
	return true
}

// resolveActual classifies a value passed for arg at a call site in caller
func (w *argumentWorklist) resolveActual(actual *ir.Value, caller *ir.Function, arg *ir.Argument) bool {
	if !ir.IsAddress(actual.Type) {
		return w.pushRootsOf(actual, caller, arg)
	}

	base := accessbase.Classify(actual)
	switch base.IsStackAllocated() {
	case accessbase.No:
		return true
	case accessbase.Yes:
		w.stage(caller, arg)
		return true
	case accessbase.DecidedInCaller:
		// read-only storage cannot be overflowed through the callee
		if base.Argument.Convention.IsInout() {
			w.push(base.Argument, arg)
		}
		return true
	case accessbase.ObjectIfStackPromoted:
		return w.pushRootsOf(base.Object, caller, arg)
	default:
		return false
	}
}
