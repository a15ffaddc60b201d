package stackprotect

import (
	"stackprot/internal/accessbase"
	"stackprot/internal/ir"
)

// risk is an instruction that can write past the storage it addresses
type risk struct {
	inst    ir.Instruction
	address *ir.Value
	base    accessbase.Base
	// scope is the nearest begin_access on the address' projection chain
	scope *ir.BeginScopedAccessInstruction
}

// riskyAccess reports whether inst may overflow the storage it addresses.
// Only instructions marked by the frontend are candidates. Indexing into the
// tail elements of an object cannot reach stack memory and is never risky.
func riskyAccess(inst ir.Instruction) (risk, bool) {
	switch i := inst.(type) {
	case *ir.AddressToRawPointerInstruction:
		if !i.Flagged {
			return risk{}, false
		}
		base, scope := accessbase.ClassifyWithScope(i.Address)
		return risk{inst: inst, address: i.Address, base: base, scope: scope}, true

	case *ir.IndexAddressInstruction:
		if !i.Flagged {
			return risk{}, false
		}
		base, scope := accessbase.ClassifyWithScope(i.Base)
		if base.Kind == accessbase.TailElement {
			return risk{}, false
		}
		return risk{inst: inst, address: i.Base, base: base, scope: scope}, true
	}
	return risk{}, false
}
