// Package accessbase classifies the storage an address ultimately points into.
//
// An address is walked backward through projections (begin_access,
// struct_element_addr, addr_cast, index_addr) until a root is reached. The
// root decides the Kind of the base, which in turn decides whether the
// storage may live on the stack.
package accessbase

import (
	"stackprot/internal/ir"
)

// Kind is the category of storage an address is rooted in
type Kind int

const (
	Unidentified Kind = iota
	Stack
	HeapBox
	Global
	ClassField
	TailElement
	Argument
	YieldOrIndirectResult
	RawPointerDerived
)

var kindNames = [...]string{
	Unidentified:          "unidentified",
	Stack:                 "stack",
	HeapBox:               "box",
	Global:                "global",
	ClassField:            "class-field",
	TailElement:           "tail-element",
	Argument:              "argument",
	YieldOrIndirectResult: "yield",
	RawPointerDerived:     "pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Base is the root of an access path.
type Base struct {
	Kind Kind
	// Root is the value the walk stopped at.
	Root *ir.Value
	// Object is set for ClassField and TailElement.
	Object *ir.Value
	// Argument is set for Argument.
	Argument *ir.Argument
}

// Stackness answers whether the storage of a base may be on the stack
type Stackness int

const (
	// No: heap or global storage
	No Stackness = iota
	// Yes: a local stack allocation
	Yes
	// DecidedInCaller: the storage is passed in through an argument
	DecidedInCaller
	// ObjectIfStackPromoted: the storage is inside an object that is on the
	// stack only if the object allocation was promoted
	ObjectIfStackPromoted
	// Maybe: the origin cannot be determined
	Maybe
)

func (s Stackness) String() string {
	switch s {
	case No:
		return "no"
	case Yes:
		return "yes"
	case DecidedInCaller:
		return "decided-in-caller"
	case ObjectIfStackPromoted:
		return "object-if-stack-promoted"
	default:
		return "maybe"
	}
}

// IsStackAllocated maps the base to the stack decision lattice. The carried
// argument or object is b.Argument or b.Object respectively.
func (b Base) IsStackAllocated() Stackness {
	switch b.Kind {
	case Stack:
		return Yes
	case HeapBox, Global:
		return No
	case ClassField, TailElement:
		return ObjectIfStackPromoted
	case Argument:
		return DecidedInCaller
	default:
		return Maybe
	}
}

func (b Base) String() string {
	switch b.Kind {
	case ClassField, TailElement:
		return b.Kind.String() + "(" + b.Object.String() + ")"
	case Argument:
		return b.Kind.String() + "(" + b.Argument.Value.String() + ")"
	default:
		return b.Kind.String()
	}
}

// Classify returns the base of addr
func Classify(addr *ir.Value) Base {
	base, _ := ClassifyWithScope(addr)
	return base
}

// ClassifyWithScope returns the base of addr together with the nearest
// begin_access on its projection chain, or nil when the address is not
// inside an access scope.
func ClassifyWithScope(addr *ir.Value) (Base, *ir.BeginScopedAccessInstruction) {
	var scope *ir.BeginScopedAccessInstruction
	v := addr
	for {
		if v.Arg != nil {
			return Base{Kind: Argument, Root: v, Argument: v.Arg}, scope
		}
		switch def := v.Def.(type) {
		case *ir.BeginScopedAccessInstruction:
			if scope == nil {
				scope = def
			}
			v = def.Address
		case *ir.StructElementAddressInstruction:
			v = def.Base
		case *ir.AddressCastInstruction:
			v = def.Address
		case *ir.IndexAddressInstruction:
			v = def.Base
		case *ir.StackAllocateInstruction:
			return Base{Kind: Stack, Root: v}, scope
		case *ir.HeapBoxAllocateInstruction:
			return Base{Kind: HeapBox, Root: v}, scope
		case *ir.GlobalAddressInstruction:
			return Base{Kind: Global, Root: v}, scope
		case *ir.FieldAddressInstruction:
			return Base{Kind: ClassField, Root: v, Object: def.Object}, scope
		case *ir.TailElementAddressInstruction:
			return Base{Kind: TailElement, Root: v, Object: def.Object}, scope
		case *ir.BeginApplyInstruction:
			return Base{Kind: YieldOrIndirectResult, Root: v}, scope
		case *ir.RawPointerToAddressInstruction:
			return Base{Kind: RawPointerDerived, Root: v}, scope
		default:
			return Base{Kind: Unidentified, Root: v}, scope
		}
	}
}
