package errors

import (
	"fmt"
	"strings"
)

// DiagnosticBuilder provides a fluent interface for creating diagnostics with suggestions
type DiagnosticBuilder struct {
	err CompilerError
}

// NewError creates a new error builder
func NewError(code, message string, pos Position) *DiagnosticBuilder {
	return &DiagnosticBuilder{
		err: CompilerError{
			Level:    Error,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// NewWarning creates a new warning builder
func NewWarning(code, message string, pos Position) *DiagnosticBuilder {
	return &DiagnosticBuilder{
		err: CompilerError{
			Level:    Warning,
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// WithLength sets the length of the error span
func (b *DiagnosticBuilder) WithLength(length int) *DiagnosticBuilder {
	b.err.Length = length
	return b
}

// WithSuggestion adds a suggestion to the error
func (b *DiagnosticBuilder) WithSuggestion(message string) *DiagnosticBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{Message: message})
	return b
}

// WithNote adds a note
func (b *DiagnosticBuilder) WithNote(note string) *DiagnosticBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

// WithHelp sets the help text
func (b *DiagnosticBuilder) WithHelp(help string) *DiagnosticBuilder {
	b.err.HelpText = help
	return b
}

// Build returns the finished diagnostic
func (b *DiagnosticBuilder) Build() CompilerError {
	return b.err
}

// Syntax wraps a parser error message
func Syntax(message string, pos Position) CompilerError {
	return NewError(ErrorSyntax, message, pos).
		WithHelp("see the module header comment in grammar/grammar.go for the textual IR syntax").
		Build()
}

// UndefinedValue creates an error for %values that have no definition
func UndefinedValue(name string, pos Position, known []string) CompilerError {
	builder := NewError(ErrorUndefinedValue, fmt.Sprintf("use of undefined value '%%%s'", name), pos).
		WithLength(len(name) + 1)

	similar := findSimilarNames(name, known)
	switch {
	case len(similar) == 1:
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%%%s'?", similar[0]))
	case len(similar) > 1:
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean one of: '%%%s'?", strings.Join(similar, "', '%")))
	default:
		builder = builder.WithNote("values must be defined before use, except phi inputs")
	}
	return builder.Build()
}

// DuplicateValue creates an error for a %value defined twice
func DuplicateValue(name string, pos Position) CompilerError {
	return NewError(ErrorDuplicateValue, fmt.Sprintf("value '%%%s' is defined more than once", name), pos).
		WithLength(len(name) + 1).
		WithNote("the IR is in SSA form: every value has exactly one definition").
		Build()
}

// UndefinedSymbol creates an error for unknown @functions and @globals
func UndefinedSymbol(kind, name string, pos Position, known []string) CompilerError {
	builder := NewError(ErrorUndefinedSymbol, fmt.Sprintf("undefined %s '@%s'", kind, name), pos).
		WithLength(len(name) + 1)
	for _, candidate := range findSimilarNames(name, known) {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '@%s'?", candidate))
	}
	return builder.Build()
}

// UndefinedBlock creates an error for unknown branch targets
func UndefinedBlock(label string, pos Position) CompilerError {
	return NewError(ErrorUndefinedBlock, fmt.Sprintf("undefined block '%s'", label), pos).
		WithLength(len(label)).
		Build()
}

// UnknownOpcode creates an error for opcodes outside the instruction set
func UnknownOpcode(opcode string, pos Position, known []string) CompilerError {
	builder := NewError(ErrorUnknownOpcode, fmt.Sprintf("unknown instruction '%s'", opcode), pos).
		WithLength(len(opcode))
	for _, candidate := range findSimilarNames(opcode, known) {
		builder = builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", candidate))
	}
	return builder.Build()
}

// InvalidOperands creates an error for operand count or kind mismatches
func InvalidOperands(opcode, expected string, pos Position) CompilerError {
	return NewError(ErrorInvalidOperands, fmt.Sprintf("'%s' expects %s", opcode, expected), pos).
		WithLength(len(opcode)).
		Build()
}

// MissingTerminator creates an error for blocks without a terminator
func MissingTerminator(label string, pos Position) CompilerError {
	return NewError(ErrorMissingTerminator, fmt.Sprintf("block '%s' does not end with a terminator", label), pos).
		WithSuggestion("end the block with br, cond_br, return, throw or unreachable").
		Build()
}

// MisplacedTerminator creates an error for instructions after a terminator
func MisplacedTerminator(opcode string, pos Position) CompilerError {
	return NewError(ErrorMissingTerminator, fmt.Sprintf("terminator '%s' must be the last instruction of its block", opcode), pos).
		WithLength(len(opcode)).
		Build()
}

// DuplicateDeclaration creates an error for duplicate functions, globals and blocks
func DuplicateDeclaration(name string, pos Position) CompilerError {
	return NewError(ErrorDuplicateDeclaration, fmt.Sprintf("duplicate declaration: %s", name), pos).
		WithSuggestion(fmt.Sprintf("rename the duplicate '%s' to a unique name", name)).
		Build()
}

// ExpectedAddress creates an error for value operands where an address is required
func ExpectedAddress(opcode, name string, pos Position) CompilerError {
	return NewError(ErrorExpectedAddress, fmt.Sprintf("'%s' requires an address operand, '%%%s' is not an address", opcode, name), pos).
		WithLength(len(opcode)).
		WithHelp("address types are written with a leading '*', e.g. *Buffer").
		Build()
}

// UnknownFlag creates a warning for flags the opcode ignores
func UnknownFlag(opcode, flag string, pos Position) CompilerError {
	return NewWarning(WarningUnknownFlag, fmt.Sprintf("flag '[%s]' has no meaning on '%s'", flag, opcode), pos).
		WithLength(len(opcode)).
		Build()
}

// InvalidConfig creates an error for unreadable configuration files
func InvalidConfig(path, message string) CompilerError {
	return NewError(ErrorInvalidConfig, message, Position{Filename: path, Line: 1, Column: 1}).
		WithHelp("known keys: enabled, move_inout, verbosity").
		Build()
}

// HasErrors reports whether any diagnostic has error level
func HasErrors(diags []CompilerError) bool {
	for _, d := range diags {
		if d.Level == Error {
			return true
		}
	}
	return false
}

// findSimilarNames returns candidates within a small edit distance of target
func findSimilarNames(target string, candidates []string) []string {
	var similar []string

	for _, candidate := range candidates {
		if candidate != target && levenshteinDistance(target, candidate) <= 2 && len(candidate) > 2 {
			similar = append(similar, candidate)
		}
	}

	return similar
}

// Simple Levenshtein distance implementation for finding similar names
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create matrix
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	// Initialize first row and column
	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	// Fill the matrix
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}
