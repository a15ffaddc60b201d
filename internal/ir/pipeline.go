package ir

import (
	"github.com/tliron/commonlog"
)

// Pass represents a single module transformation
type Pass interface {
	Name() string
	Apply(module *Module) bool // Returns true if changes were made
	Description() string
}

// Pipeline manages the sequence of passes run over a module
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates an empty pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// AddPass adds a pass to the pipeline
func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Passes returns the passes in execution order
func (p *Pipeline) Passes() []Pass {
	return p.passes
}

// Run executes all passes on the module and reports whether any changed it
func (p *Pipeline) Run(module *Module) bool {
	log := commonlog.GetLogger("stackprot.pipeline")
	log.Infof("running %d passes on module %s", len(p.passes), module.Name)

	changed := false
	for _, pass := range p.passes {
		log.Debugf("%s: %s", pass.Name(), pass.Description())
		if pass.Apply(module) {
			log.Infof("%s: changed module %s", pass.Name(), module.Name)
			changed = true
		} else {
			log.Debugf("%s: no changes needed", pass.Name())
		}
	}
	return changed
}

// UnreachableBlockElimination removes blocks that cannot be reached from the
// entry block. Stack-nesting analysis only reasons about reachable blocks.
type UnreachableBlockElimination struct{}

func (u *UnreachableBlockElimination) Name() string {
	return "Unreachable Block Elimination"
}

func (u *UnreachableBlockElimination) Description() string {
	return "Removes basic blocks that are unreachable from the entry block"
}

func (u *UnreachableBlockElimination) Apply(module *Module) bool {
	changed := false

	for _, fn := range module.Functions {
		if u.eliminateDeadBlocks(fn) {
			changed = true
		}
	}

	return changed
}

// eliminateDeadBlocks removes unreachable basic blocks using reachability analysis
func (u *UnreachableBlockElimination) eliminateDeadBlocks(fn *Function) bool {
	if len(fn.Blocks) == 0 {
		return false
	}

	reachable := make(map[*BasicBlock]bool)
	u.markReachable(fn.Blocks[0], reachable)

	newBlocks := []*BasicBlock{}
	changed := false

	for _, block := range fn.Blocks {
		if reachable[block] {
			newBlocks = append(newBlocks, block)
		} else {
			changed = true
		}
	}

	if !changed {
		return false
	}
	fn.Blocks = newBlocks

	// Drop phi inputs flowing in from removed blocks
	for _, block := range fn.Blocks {
		for _, inst := range block.Instructions {
			phi, ok := inst.(*PhiInstruction)
			if !ok {
				continue
			}
			var blocks []*BasicBlock
			var inputs []*Value
			for i, pred := range phi.Blocks {
				if reachable[pred] {
					blocks = append(blocks, pred)
					inputs = append(inputs, phi.Inputs[i])
				}
			}
			phi.Blocks, phi.Inputs = blocks, inputs
		}
	}
	return true
}

// markReachable marks all blocks reachable from the given block
func (u *UnreachableBlockElimination) markReachable(block *BasicBlock, reachable map[*BasicBlock]bool) {
	if reachable[block] {
		return // Already visited
	}

	reachable[block] = true

	if block.Terminator != nil {
		for _, succ := range block.Terminator.GetSuccessors() {
			if succ != nil {
				u.markReachable(succ, reachable)
			}
		}
	}
}
