package lsp

import (
	"fmt"
	"slices"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"stackprot/grammar"
	"stackprot/internal/config"
	"stackprot/internal/errors"
	"stackprot/internal/ir"
	"stackprot/internal/stackprotect"
)

const diagnosticSource = "stackprot"

// Analyze parses and builds a document and runs the stack protection pass
// over it. Build diagnostics are returned as they are; when the module is
// valid, every function that needs a stack protector gets an information
// diagnostic on its declaration.
func Analyze(path, text string, opts config.Options) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	file, err := grammar.Parse(path, text)
	if err != nil {
		pos, msg, ok := grammar.ErrorPosition(err)
		if !ok {
			msg = err.Error()
			pos.Line, pos.Column = 1, 1
		}
		return append(diagnostics, ConvertDiagnostic(errors.Syntax("syntax error: "+msg,
			errors.Position{Filename: path, Line: pos.Line, Column: pos.Column})))
	}

	module, diags := ir.Build(file)
	for _, d := range diags {
		diagnostics = append(diagnostics, ConvertDiagnostic(d))
	}
	if module == nil || errors.HasErrors(diags) {
		return diagnostics
	}

	pass := stackprotect.NewModulePass(opts)
	pass.Apply(module)

	for _, decl := range file.Decls {
		if decl.Function == nil {
			continue
		}
		name := grammar.Symbol(decl.Function.Name)
		fn := module.LookupFunction(name)
		if fn == nil || !fn.NeedsStackProtection() {
			continue
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    nameRange(text, decl.Function),
			Severity: ptrSeverity(protocol.DiagnosticSeverityInformation),
			Source:   ptrString(diagnosticSource),
			Message:  protectionMessage(name, pass.Report()),
		})
	}
	return diagnostics
}

// nameRange is the range of the @name of a function declaration. The
// declaration position is that of its first token, which may be "public".
func nameRange(text string, fn *grammar.Function) protocol.Range {
	line := uint32(fn.Pos.Line - 1)
	start := fn.Pos.Column - 1
	lines := strings.Split(text, "\n")
	if fn.Pos.Line >= 1 && fn.Pos.Line <= len(lines) && start <= len(lines[fn.Pos.Line-1]) {
		if i := strings.Index(lines[fn.Pos.Line-1][start:], fn.Name); i >= 0 {
			start += i
		}
	}
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: uint32(start)},
		End:   protocol.Position{Line: line, Character: uint32(start + len(fn.Name))},
	}
}

// protectionMessage explains why the named function is protected
func protectionMessage(name string, report *stackprotect.Report) string {
	var reasons []string
	for _, entry := range report.Entries {
		if !slices.Contains(entry.Flagged, name) {
			continue
		}
		reason := string(entry.Decision)
		if entry.Function != name {
			reason = fmt.Sprintf("%s via @%s", reason, entry.Function)
		}
		if !slices.Contains(reasons, reason) {
			reasons = append(reasons, reason)
		}
	}
	msg := fmt.Sprintf("@%s needs a stack protector", name)
	if len(reasons) > 0 {
		msg += " (" + strings.Join(reasons, ", ") + ")"
	}
	return msg
}

// ConvertDiagnostic transforms a compiler diagnostic into an LSP diagnostic
func ConvertDiagnostic(d errors.CompilerError) protocol.Diagnostic {
	length := max(d.Length, 1)
	diagnostic := protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{
				Line:      uint32(max(d.Position.Line-1, 0)),   // Convert to 0-based indexing
				Character: uint32(max(d.Position.Column-1, 0)), // Convert to 0-based indexing
			},
			End: protocol.Position{
				Line:      uint32(max(d.Position.Line-1, 0)),
				Character: uint32(max(d.Position.Column-1, 0) + length),
			},
		},
		Severity: ptrSeverity(severity(d.Level)),
		Source:   ptrString(diagnosticSource),
		Message:  d.Message,
	}
	if d.Code != "" {
		diagnostic.Code = &protocol.IntegerOrString{Value: d.Code}
	}
	return diagnostic
}

func severity(level errors.ErrorLevel) protocol.DiagnosticSeverity {
	switch level {
	case errors.Error:
		return protocol.DiagnosticSeverityError
	case errors.Warning:
		return protocol.DiagnosticSeverityWarning
	case errors.Note:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityHint
	}
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
