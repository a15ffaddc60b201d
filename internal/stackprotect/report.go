package stackprotect

import (
	"fmt"
)

// Decision is the outcome for one risky instruction
type Decision string

const (
	// DecisionSafe: the storage is known not to be on the stack
	DecisionSafe Decision = "safe"
	// DecisionLocal: the storage is a stack allocation of the function
	DecisionLocal Decision = "local"
	// DecisionBuiltin: the function allocates raw stack memory
	DecisionBuiltin Decision = "builtin"
	// DecisionCallerStack: the storage is passed in from a caller's stack
	DecisionCallerStack Decision = "caller-stack"
	// DecisionObjectStack: the storage is inside a stack promoted object
	DecisionObjectStack Decision = "object-stack"
	// DecisionMovedScope: the access scope was moved to a temporary
	DecisionMovedScope Decision = "moved-scope"
	// DecisionMovedArgument: the in-out argument was moved to a temporary
	DecisionMovedArgument Decision = "moved-argument"
	// DecisionUnknown: the origin is unknown and the function is flagged
	DecisionUnknown Decision = "unknown"
)

// Entry records the decision taken for one instruction
type Entry struct {
	Function    string
	Instruction string
	Base        string
	Decision    Decision
	// Flagged lists the functions marked because of this instruction
	Flagged []string
}

func (e Entry) String() string {
	text := fmt.Sprintf("@%s: %s [%s] %s", e.Function, e.Instruction, e.Base, e.Decision)
	if len(e.Flagged) > 0 {
		text += fmt.Sprintf(" %v", e.Flagged)
	}
	return text
}

// Report collects the decisions of a pass in the order they were taken
type Report struct {
	Entries []Entry
}

func (r *Report) add(entry Entry) {
	r.Entries = append(r.Entries, entry)
}

// Count returns how many instructions got decision d
func (r *Report) Count(d Decision) int {
	n := 0
	for _, e := range r.Entries {
		if e.Decision == d {
			n++
		}
	}
	return n
}

// ForFunction returns the entries of the instructions in the named function
func (r *Report) ForFunction(name string) []Entry {
	var entries []Entry
	for _, e := range r.Entries {
		if e.Function == name {
			entries = append(entries, e)
		}
	}
	return entries
}
