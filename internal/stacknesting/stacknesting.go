// Package stacknesting checks and repairs the LIFO discipline of stack
// allocations.
//
// Every dealloc_stack must release the most recently allocated live
// stack_alloc. Rewrites that introduce new allocations inside existing ones
// can break that order; Fix restores it by deferring an out-of-order
// dealloc_stack until the allocations above it are released. Allocations only
// ever live longer, never shorter.
package stacknesting

import (
	"fmt"
	"slices"

	"stackprot/internal/ir"
)

type entry struct {
	alloc *ir.Value
	// released marks a deferred dealloc_stack
	released bool
}

type state []entry

func (s state) equal(other state) bool {
	return slices.Equal(s, other)
}

func (s state) find(alloc *ir.Value) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].alloc == alloc {
			return i
		}
	}
	return -1
}

func (s state) String() string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.alloc.String()
		if e.released {
			names[i] += "(released)"
		}
	}
	return fmt.Sprint(names)
}

type walker struct {
	fn      *ir.Function
	repair  bool
	changed bool
}

// Fix moves out-of-order dealloc_stack instructions of fn so that stack
// allocations nest. It reports whether fn changed. An error means the
// allocations of fn cannot be nested, for example because two paths reach a
// block with different live allocations; fn may be partially rewritten then.
func Fix(fn *ir.Function) (bool, error) {
	w := &walker{fn: fn, repair: true}
	err := w.run()
	return w.changed, err
}

// Check verifies that stack allocations in fn nest and are released on every
// path leaving the function.
func Check(fn *ir.Function) error {
	w := &walker{fn: fn}
	return w.run()
}

func (w *walker) run() error {
	entryBlock := w.fn.Entry()
	if entryBlock == nil {
		return nil
	}

	states := map[*ir.BasicBlock]state{entryBlock: nil}
	for _, block := range reversePostorder(entryBlock) {
		st, err := w.block(block, slices.Clone(states[block]))
		if err != nil {
			return err
		}

		term := block.Terminator
		if term == nil {
			continue
		}
		if term.IsFunctionExiting() && len(st) > 0 {
			return fmt.Errorf("@%s: %s: %s still allocated at %s", w.fn.Name, block.Label, st, term)
		}
		for _, succ := range term.GetSuccessors() {
			prev, seen := states[succ]
			if !seen {
				states[succ] = slices.Clone(st)
				continue
			}
			if !prev.equal(st) {
				return fmt.Errorf("@%s: %s: inconsistent stack allocations %s and %s from %s",
					w.fn.Name, succ.Label, prev, st, block.Label)
			}
		}
	}
	return nil
}

func (w *walker) block(block *ir.BasicBlock, st state) (state, error) {
	for _, inst := range slices.Clone(block.Instructions) {
		switch i := inst.(type) {
		case *ir.StackAllocateInstruction:
			st = append(st, entry{alloc: i.Result})

		case *ir.DeallocateStackInstruction:
			pos := st.find(i.Address)
			if pos < 0 || st[pos].released {
				return nil, fmt.Errorf("@%s: %s: %s releases storage that is not allocated", w.fn.Name, block.Label, i)
			}
			if pos < len(st)-1 {
				if !w.repair {
					return nil, fmt.Errorf("@%s: %s: %s is not the innermost allocation, %s",
						w.fn.Name, block.Label, i, st)
				}
				st[pos].released = true
				ir.Remove(i)
				w.changed = true
				continue
			}

			st = st[:pos]
			var at ir.Instruction = i
			for len(st) > 0 && st[len(st)-1].released {
				top := len(st) - 1
				at = ir.After(at).CreateDeallocateStack(st[top].alloc)
				st = st[:top]
			}
		}
	}
	return st, nil
}

// reversePostorder lists the blocks reachable from entry so that every block
// comes after its predecessors, back edges excepted.
func reversePostorder(entry *ir.BasicBlock) []*ir.BasicBlock {
	visited := make(map[*ir.BasicBlock]bool)
	var post []*ir.BasicBlock

	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		visited[b] = true
		if b.Terminator != nil {
			for _, succ := range b.Terminator.GetSuccessors() {
				if !visited[succ] {
					visit(succ)
				}
			}
		}
		post = append(post, b)
	}
	visit(entry)

	slices.Reverse(post)
	return post
}
