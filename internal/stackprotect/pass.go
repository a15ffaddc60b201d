// Package stackprotect decides which functions need a stack protector.
//
// A function needs protection when it contains an instruction that can write
// past the end of stack storage, i.e. a flagged address_to_pointer or
// index_addr whose address may point into a stack frame. When the address is
// local the function is flagged. When the storage comes from a caller the
// module pass follows the argument to its call sites and flags the functions
// owning the stack storage. When the origin cannot be determined the access is
// moved to a local stack temporary so that only this function's frame is
// exposed, or the function is flagged conservatively.
package stackprotect

import (
	"github.com/tliron/commonlog"

	"stackprot/internal/accessbase"
	"stackprot/internal/config"
	"stackprot/internal/funcuses"
	"stackprot/internal/ir"
	"stackprot/internal/stacknesting"
)

// Pass is the stack protection pass. It implements ir.Pass.
type Pass struct {
	opts        config.Options
	moduleLevel bool

	log    commonlog.Logger
	index  *funcuses.Index
	module *ir.Module
	report Report
}

// NewModulePass creates the interprocedural variant which resolves arguments
// across the call sites of the module.
func NewModulePass(opts config.Options) *Pass {
	return &Pass{opts: opts, moduleLevel: true}
}

// NewFunctionPass creates the variant that looks at one function at a time.
// Storage that is not local is always mitigated.
func NewFunctionPass(opts config.Options) *Pass {
	return &Pass{opts: opts}
}

func (p *Pass) Name() string {
	if p.moduleLevel {
		return "Stack Protection"
	}
	return "Function Stack Protection"
}

func (p *Pass) Description() string {
	return "Marks functions that need a stack protector and moves unresolved accesses to temporaries"
}

// Report returns the decisions taken so far
func (p *Pass) Report() *Report {
	return &p.report
}

func (p *Pass) logger() commonlog.Logger {
	if p.log == nil {
		p.log = commonlog.GetLogger("stackprot.protect")
	}
	return p.log
}

// uses builds the function use index on first need
func (p *Pass) uses() *funcuses.Index {
	if p.index == nil {
		p.index = funcuses.Build(p.module)
	}
	return p.index
}

func (p *Pass) Apply(module *ir.Module) bool {
	if !p.opts.Enabled {
		p.logger().Debugf("disabled, skipping module %s", module.Name)
		return false
	}
	p.module = module
	p.index = nil

	changed := false
	for _, fn := range module.Functions {
		pending, fnChanged := p.processFunction(fn)
		if fnChanged {
			changed = true
		}
		for _, other := range pending {
			if other.SetNeedsStackProtection() {
				p.logger().Infof("@%s needs stack protection for a callee", other.Name)
				changed = true
			}
		}
	}
	return changed
}

// functionState is the bookkeeping of one processFunction call
type functionState struct {
	fn *ir.Function
	// pending are other functions to flag once fn is done
	pending    []*ir.Function
	changed    bool
	fixNesting bool
}

// processFunction protects fn. Functions found to need protection because
// of fn are returned rather than flagged, so that only fn is modified.
func (p *Pass) processFunction(fn *ir.Function) ([]*ir.Function, bool) {
	state := &functionState{fn: fn}

	for _, inst := range fn.Instructions() {
		if _, ok := inst.(*ir.StackAllocBuiltinInstruction); ok {
			p.flag(state, fn)
			p.report.add(Entry{
				Function:    fn.Name,
				Instruction: inst.String(),
				Base:        accessbase.Stack.String(),
				Decision:    DecisionBuiltin,
				Flagged:     []string{fn.Name},
			})
			continue
		}
		if r, ok := riskyAccess(inst); ok {
			p.protect(state, r)
		}
	}

	if state.fixNesting {
		if _, err := stacknesting.Fix(fn); err != nil {
			p.logger().Errorf("@%s: cannot repair stack nesting: %s", fn.Name, err)
		}
	}
	return state.pending, state.changed
}

func (p *Pass) protect(state *functionState, r risk) {
	entry := Entry{
		Function:    state.fn.Name,
		Instruction: r.inst.String(),
		Base:        r.base.String(),
	}

	switch r.base.IsStackAllocated() {
	case accessbase.No:
		entry.Decision = DecisionSafe

	case accessbase.Yes:
		p.flag(state, state.fn)
		entry.Decision = DecisionLocal
		entry.Flagged = []string{state.fn.Name}

	case accessbase.DecidedInCaller:
		if p.moduleLevel {
			w := newArgumentWorklist(p.uses)
			w.push(r.base.Argument, nil)
			if w.resolve() {
				p.stage(state, &entry, w.staged, DecisionCallerStack)
				break
			}
		}
		p.mitigate(state, &entry, r)

	case accessbase.ObjectIfStackPromoted:
		if p.moduleLevel {
			w := newArgumentWorklist(p.uses)
			if w.pushRootsOf(r.base.Object, state.fn, nil) && w.resolve() {
				p.stage(state, &entry, w.staged, DecisionObjectStack)
				break
			}
		}
		p.mitigate(state, &entry, r)

	default:
		p.mitigate(state, &entry, r)
	}

	p.logger().Debugf("%s", entry)
	p.report.add(entry)
}

// stage hands the functions found by a resolved worklist to the driver
func (p *Pass) stage(state *functionState, entry *Entry, staged []*ir.Function, decision Decision) {
	if len(staged) == 0 {
		entry.Decision = DecisionSafe
		return
	}
	entry.Decision = decision
	for _, fn := range staged {
		entry.Flagged = append(entry.Flagged, fn.Name)
	}
	state.pending = append(state.pending, staged...)
}

// mitigate handles an access of unknown origin
func (p *Pass) mitigate(state *functionState, entry *Entry, r risk) {
	entry.Flagged = []string{state.fn.Name}

	if p.opts.MoveInout {
		if r.scope != nil && moveScopeToTemporary(r.scope) {
			state.changed = true
			state.fixNesting = true
			entry.Decision = DecisionMovedScope
			return
		}
		if r.base.Kind == accessbase.Argument && moveArgumentToTemporary(r.base.Argument) {
			state.changed = true
			entry.Decision = DecisionMovedArgument
			return
		}
	}

	p.flag(state, state.fn)
	entry.Decision = DecisionUnknown
}

func (p *Pass) flag(state *functionState, fn *ir.Function) {
	if fn.SetNeedsStackProtection() {
		p.logger().Infof("@%s needs stack protection", fn.Name)
		state.changed = true
	}
}
