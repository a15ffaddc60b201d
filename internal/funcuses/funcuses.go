// Package funcuses indexes where each function of a module is referenced.
//
// A function whose every reference is known can have its callers enumerated,
// which is what interprocedural argument resolution needs. Functions that are
// public or reachable through a dispatch table may be called from code that
// is not part of the module; they have unknown uses.
package funcuses

import (
	"stackprot/internal/ir"
)

// Uses describes the references to one function
type Uses struct {
	// HasUnknownUses is set when the function may be called from outside
	// the module or through a dispatch table.
	HasUnknownUses bool
	// Refs are the function_ref instructions naming the function
	Refs []*ir.FunctionReferenceInstruction
}

// Index maps functions to their uses
type Index struct {
	uses map[*ir.Function]*Uses
}

// Build scans the whole module once
func Build(m *ir.Module) *Index {
	idx := &Index{uses: make(map[*ir.Function]*Uses, len(m.Functions))}
	for _, fn := range m.Functions {
		idx.entry(fn).HasUnknownUses = fn.Public
	}
	for _, table := range m.Tables {
		for _, fn := range table.Functions {
			idx.entry(fn).HasUnknownUses = true
		}
	}
	for _, fn := range m.Functions {
		for _, block := range fn.Blocks {
			for _, inst := range block.Instructions {
				if ref, ok := inst.(*ir.FunctionReferenceInstruction); ok {
					u := idx.entry(ref.Function)
					u.Refs = append(u.Refs, ref)
				}
			}
		}
	}
	return idx
}

func (idx *Index) entry(fn *ir.Function) *Uses {
	u, ok := idx.uses[fn]
	if !ok {
		u = &Uses{}
		idx.uses[fn] = u
	}
	return u
}

// Get returns the uses of fn. A function that is not part of the indexed
// module is reported as having unknown uses.
func (idx *Index) Get(fn *ir.Function) Uses {
	u, ok := idx.uses[fn]
	if !ok {
		return Uses{HasUnknownUses: true}
	}
	return *u
}
