package stackprotect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackprot/internal/funcuses"
	"stackprot/internal/ir"
)

func worklistFor(module *ir.Module) *argumentWorklist {
	idx := funcuses.Build(module)
	return newArgumentWorklist(func() *funcuses.Index { return idx })
}

func TestWorklistRecursion(t *testing.T) {
	module := parse(t, `
module demo

func @r(%x: inout *Buffer, %c: Bool) {
bb0:
  cond_br %c, bb1, bb2
bb1:
  %fr = function_ref @r
  call %fr(%x, %c)
  br bb2
bb2:
  return
}
`)
	r := module.LookupFunction("r")
	w := worklistFor(module)
	w.push(r.Params[0], nil)
	w.push(r.Params[0], nil)

	assert.Len(t, w.queue, 1, "arguments are pushed once")
	assert.True(t, w.resolve())
	assert.Empty(t, w.staged)
}

func TestWorklistStagesChain(t *testing.T) {
	module := parse(t, callerChain)
	b := module.LookupFunction("b")
	w := worklistFor(module)
	w.push(b.Params[0], nil)

	require.True(t, w.resolve())
	var names []string
	for _, fn := range w.staged {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestWorklistFailsOnUnresolvedOrigins(t *testing.T) {
	for _, tt := range unresolvedOrigins {
		t.Run(tt.name, func(t *testing.T) {
			module := parse(t, tt.source)
			w := worklistFor(module)
			w.push(module.LookupFunction("b").Params[0], nil)
			assert.False(t, w.resolve())
		})
	}
}

func TestWorklistArityMismatch(t *testing.T) {
	module := parse(t, `
module demo

func @c() {
bb0:
  %buf = stack_alloc Buffer
  %fb = function_ref @b
  call %fb()
  dealloc_stack %buf
  return
}

func @b(%x: inout *Buffer) {
bb0:
  return
}
`)
	w := worklistFor(module)
	w.push(module.LookupFunction("b").Params[0], nil)
	assert.False(t, w.resolve())
}

func TestWalkObjectRootsAbort(t *testing.T) {
	module := parse(t, `
module demo

func @f(%slot: *Node, %c: Bool) {
bb0:
  %a = alloc_object Node
  %l = load %slot
  cond_br %c, bb1, bb2
bb1:
  br bb2
bb2:
  %m = phi Node { bb0: %a, bb1: %l }
  return
}
`)
	f := module.LookupFunction("f")
	phi := f.LookupBlock("bb2").Instructions[0].(*ir.PhiInstruction)

	var roots []string
	ok := walkObjectRoots(phi.Result, func(root *ir.Value) bool {
		roots = append(roots, root.Name)
		_, isAlloc := root.Def.(*ir.ObjectAllocateInstruction)
		return isAlloc
	})
	assert.False(t, ok)
	assert.Contains(t, roots, "l")

	ok = walkObjectRoots(phi.Inputs[0], func(*ir.Value) bool { return true })
	assert.True(t, ok)
}
