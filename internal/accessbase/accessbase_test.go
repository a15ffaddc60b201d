package accessbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackprot/internal/ir"
)

const roots = `
module demo

global @g : Buffer

func @f(%arg: inout *Buffer, %p: RawPointer, %obj: Node) {
bb0:
  %s = stack_alloc Buffer
  %b = alloc_box Buffer
  %ga = global_addr @g
  %fa = field_addr %obj, data : *Int64
  %ta = tail_addr %obj : *Int8
  %fn = function_ref @f
  %y = begin_apply %fn(%arg, %p, %obj) : *Int64
  %pa = pointer_to_address %p, *Buffer
  %o = alloc_object Node
  %ld = load %arg
  dealloc_stack %s
  return
}
`

func valueNamed(t *testing.T, fn *ir.Function, name string) *ir.Value {
	t.Helper()
	if name[0] == '$' {
		for _, param := range fn.Params {
			if param.Name == name[1:] {
				return param.Value
			}
		}
	}
	for _, inst := range fn.Instructions() {
		if r := inst.GetResult(); r != nil && r.Name == name {
			return r
		}
	}
	t.Fatalf("value %s not found", name)
	return nil
}

func TestClassifyRoots(t *testing.T) {
	module, diags := ir.ParseModule("roots.sir", roots)
	require.Empty(t, diags)
	fn := module.LookupFunction("f")

	tests := []struct {
		value string
		kind  Kind
		stack Stackness
	}{
		{"s", Stack, Yes},
		{"b", HeapBox, No},
		{"ga", Global, No},
		{"fa", ClassField, ObjectIfStackPromoted},
		{"ta", TailElement, ObjectIfStackPromoted},
		{"y", YieldOrIndirectResult, Maybe},
		{"pa", RawPointerDerived, Maybe},
		{"$arg", Argument, DecidedInCaller},
		{"ld", Unidentified, Maybe},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			base := Classify(valueNamed(t, fn, tt.value))
			assert.Equal(t, tt.kind, base.Kind)
			assert.Equal(t, tt.stack, base.IsStackAllocated())
		})
	}

	obj := fn.Params[2].Value
	assert.Same(t, obj, Classify(valueNamed(t, fn, "fa")).Object)
	assert.Same(t, obj, Classify(valueNamed(t, fn, "ta")).Object)
	assert.Same(t, fn.Params[0], Classify(fn.Params[0].Value).Argument)
}

func TestClassifyThroughProjections(t *testing.T) {
	module, diags := ir.ParseModule("proj.sir", `
module demo

func @f(%i: Int64) {
bb0:
  %s = stack_alloc Pair
  %outer = begin_access [read] %s
  %e = struct_element_addr %outer, first : *Buffer
  %inner = begin_access [modify] %e
  %c = addr_cast %inner, *Int8
  %x = index_addr %c, %i
  end_access %inner
  end_access %outer
  dealloc_stack %s
  return
}
`)
	require.Empty(t, diags)
	fn := module.LookupFunction("f")

	base, scope := ClassifyWithScope(valueNamed(t, fn, "x"))
	assert.Equal(t, Stack, base.Kind)
	assert.Equal(t, "s", base.Root.Name)
	require.NotNil(t, scope)
	assert.Equal(t, "inner", scope.Result.Name, "the nearest scope should win")
	assert.Equal(t, ir.AccessModify, scope.Kind)

	_, scope = ClassifyWithScope(valueNamed(t, fn, "e"))
	require.NotNil(t, scope)
	assert.Equal(t, "outer", scope.Result.Name)

	_, scope = ClassifyWithScope(valueNamed(t, fn, "s"))
	assert.Nil(t, scope)
}

func TestBaseString(t *testing.T) {
	module, diags := ir.ParseModule("roots.sir", roots)
	require.Empty(t, diags)
	fn := module.LookupFunction("f")

	assert.Equal(t, "stack", Classify(valueNamed(t, fn, "s")).String())
	assert.Equal(t, "class-field(%obj)", Classify(valueNamed(t, fn, "fa")).String())
	assert.Equal(t, "argument(%arg)", Classify(fn.Params[0].Value).String())
	assert.Equal(t, "decided-in-caller", DecidedInCaller.String())
}
