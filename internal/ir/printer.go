package ir

import (
	"fmt"
	"strings"
)

// Printer provides pretty-printing for IR. The output is valid textual IR and
// parses back into an equivalent module.
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

// Print returns the textual form of a module
func Print(module *Module) string {
	p := NewPrinter()
	p.printModule(module)
	return p.output.String()
}

// PrintFunction returns the textual form of a single function
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

// Helper methods

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printModule(module *Module) {
	p.writeLine("module %s", module.Name)

	if len(module.Globals) > 0 {
		p.writeLine("")
		for _, g := range module.Globals {
			p.writeLine("global @%s : %s", g.Name, g.Type)
		}
	}

	if len(module.Tables) > 0 {
		p.writeLine("")
		for _, table := range module.Tables {
			entries := make([]string, len(table.Functions))
			for i, fn := range table.Functions {
				entries[i] = "@" + fn.Name
			}
			p.writeLine("table @%s { %s }", table.Name, strings.Join(entries, ", "))
		}
	}

	for _, fn := range module.Functions {
		p.writeLine("")
		p.printFunction(fn)
	}
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s %s", param.Value, param.Convention, param.Value.Type)
	}

	header := fmt.Sprintf("func @%s(%s)", fn.Name, strings.Join(params, ", "))
	if fn.Public {
		header = "public " + header
	}
	if fn.NeedsStackProtection() {
		header += " [" + AttributeStackProtection + "]"
	}
	p.writeLine("%s {", header)

	for _, block := range fn.Blocks {
		p.writeLine("%s:", block.Label)
		p.indent++
		for _, inst := range block.AllInstructions() {
			p.writeLine("%s", inst.String())
		}
		p.indent--
	}
	p.writeLine("}")
}

// Instruction rendering

func valueName(v *Value) string {
	if v == nil {
		return "%<undef>"
	}
	return v.String()
}

func valueList(values []*Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = valueName(v)
	}
	return strings.Join(parts, ", ")
}

func defines(result *Value, text string) string {
	if result == nil {
		return text
	}
	return fmt.Sprintf("%s = %s", valueName(result), text)
}

// flagList renders "[a, b] " from the non-empty flags, or nothing
func flagList(flags ...string) string {
	var present []string
	for _, f := range flags {
		if f != "" {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return ""
	}
	return "[" + strings.Join(present, ", ") + "] "
}

func when(on bool, flag string) string {
	if on {
		return flag
	}
	return ""
}

func (s *StackAllocateInstruction) String() string {
	return defines(s.Result, fmt.Sprintf("stack_alloc %s", s.Type))
}

func (d *DeallocateStackInstruction) String() string {
	return fmt.Sprintf("dealloc_stack %s", valueName(d.Address))
}

func (h *HeapBoxAllocateInstruction) String() string {
	return defines(h.Result, fmt.Sprintf("alloc_box %s", h.Type))
}

func (g *GlobalAddressInstruction) String() string {
	return defines(g.Result, fmt.Sprintf("global_addr @%s", g.Global.Name))
}

func (o *ObjectAllocateInstruction) String() string {
	return defines(o.Result, fmt.Sprintf("alloc_object %s%s", flagList(when(o.StackEligible, "stack")), o.Class))
}

func (f *FieldAddressInstruction) String() string {
	return defines(f.Result, fmt.Sprintf("field_addr %s, %s : %s", valueName(f.Object), f.Field, f.Result.Type))
}

func (t *TailElementAddressInstruction) String() string {
	return defines(t.Result, fmt.Sprintf("tail_addr %s : %s", valueName(t.Object), t.Result.Type))
}

func (s *StructElementAddressInstruction) String() string {
	return defines(s.Result, fmt.Sprintf("struct_element_addr %s, %s : %s", valueName(s.Base), s.Field, s.Result.Type))
}

func (a *AddressCastInstruction) String() string {
	return defines(a.Result, fmt.Sprintf("addr_cast %s, %s", valueName(a.Address), a.Result.Type))
}

func (i *IndexAddressInstruction) String() string {
	return defines(i.Result, fmt.Sprintf("index_addr %s%s, %s", flagList(when(i.Flagged, "flagged")), valueName(i.Base), valueName(i.Offset)))
}

func (b *BeginScopedAccessInstruction) String() string {
	return defines(b.Result, fmt.Sprintf("begin_access [%s] %s", b.Kind, valueName(b.Address)))
}

func (e *EndScopedAccessInstruction) String() string {
	return fmt.Sprintf("end_access %s", valueName(e.Scope))
}

func (a *AddressToRawPointerInstruction) String() string {
	return defines(a.Result, fmt.Sprintf("address_to_pointer %s%s", flagList(when(a.Flagged, "flagged")), valueName(a.Address)))
}

func (r *RawPointerToAddressInstruction) String() string {
	return defines(r.Result, fmt.Sprintf("pointer_to_address %s, %s", valueName(r.Pointer), r.Result.Type))
}

func (s *StackAllocBuiltinInstruction) String() string {
	return defines(s.Result, fmt.Sprintf("builtin_stack_alloc %s", valueName(s.Size)))
}

func (f *FunctionReferenceInstruction) String() string {
	return defines(f.Result, fmt.Sprintf("function_ref @%s", f.Function.Name))
}

func (c *CallInstruction) String() string {
	text := fmt.Sprintf("call %s(%s)", valueName(c.Callee), valueList(c.Args))
	if c.Result != nil {
		text += fmt.Sprintf(" : %s", c.Result.Type)
	}
	return defines(c.Result, text)
}

func (b *BeginApplyInstruction) String() string {
	return defines(b.Result, fmt.Sprintf("begin_apply %s(%s) : %s", valueName(b.Callee), valueList(b.Args), b.Result.Type))
}

func (p *PartialApplyInstruction) String() string {
	return defines(p.Result, fmt.Sprintf("partial_apply %s(%s)", valueName(p.Callee), valueList(p.Args)))
}

func (c *CopyAddressInstruction) String() string {
	return fmt.Sprintf("copy_addr %s%s, %s",
		flagList(when(c.TakeSource, "take"), when(c.InitializeDest, "init")), valueName(c.From), valueName(c.To))
}

func (l *LoadInstruction) String() string {
	return defines(l.Result, fmt.Sprintf("load %s", valueName(l.Address)))
}

func (s *StoreInstruction) String() string {
	return fmt.Sprintf("store %s, %s", valueName(s.Value), valueName(s.Address))
}

func (o *ObjectCastInstruction) String() string {
	return defines(o.Result, fmt.Sprintf("object_cast %s, %s", valueName(o.Object), o.Result.Type))
}

func (s *StructInstruction) String() string {
	return defines(s.Result, fmt.Sprintf("struct %s : %s", valueList(s.Fields), s.Result.Type))
}

func (s *StructExtractInstruction) String() string {
	return defines(s.Result, fmt.Sprintf("struct_extract %s, %s : %s", valueName(s.Aggregate), s.Field, s.Result.Type))
}

func (p *PhiInstruction) String() string {
	incoming := make([]string, len(p.Inputs))
	for i, input := range p.Inputs {
		incoming[i] = fmt.Sprintf("%s: %s", p.Blocks[i].Label, valueName(input))
	}
	return defines(p.Result, fmt.Sprintf("phi %s { %s }", p.Result.Type, strings.Join(incoming, ", ")))
}

func (c *ConstantInstruction) String() string {
	return defines(c.Result, fmt.Sprintf("integer_literal %d : %s", c.Value, c.Result.Type))
}

func (r *ReturnTerminator) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", valueName(r.Value))
}

func (t *ThrowTerminator) String() string {
	return fmt.Sprintf("throw %s", valueName(t.Error))
}

func (u *UnreachableTerminator) String() string {
	return "unreachable"
}

func (b *BranchTerminator) String() string {
	return fmt.Sprintf("cond_br %s, %s, %s", valueName(b.Condition), b.TrueBlock.Label, b.FalseBlock.Label)
}

func (j *JumpTerminator) String() string {
	return fmt.Sprintf("br %s", j.Target.Label)
}
