package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorReporter(t *testing.T) {
	source := `module demo
func @f() {
bb0:
  %1 = load %bufer
  return
}`

	reporter := NewErrorReporter("test.sir", source)

	err := UndefinedValue("bufer", Position{Line: 4, Column: 13}, []string{"buffer", "tmp"})
	formatted := reporter.FormatError(err)

	// Should contain error level and code
	assert.Contains(t, formatted, "error["+ErrorUndefinedValue+"]")
	assert.Contains(t, formatted, "undefined value")
	assert.Contains(t, formatted, "%bufer")

	// Should contain location
	assert.Contains(t, formatted, "test.sir:4:13")

	// Should contain suggestions
	assert.Contains(t, formatted, "did you mean")
	assert.Contains(t, formatted, "%buffer")
}

func TestUndefinedValueError(t *testing.T) {
	pos := Position{Line: 1, Column: 5}

	err := UndefinedValue("adr", pos, []string{"addr"})
	assert.Equal(t, ErrorUndefinedValue, err.Code)
	assert.Contains(t, err.Message, "%adr")
	assert.Len(t, err.Suggestions, 1)
	assert.Contains(t, err.Suggestions[0].Message, "did you mean '%addr'")

	err = UndefinedValue("xyz", pos, nil)
	assert.Empty(t, err.Suggestions)
	assert.Len(t, err.Notes, 1)
	assert.Contains(t, err.Notes[0], "phi")
}

func TestUndefinedSymbolError(t *testing.T) {
	pos := Position{Line: 2, Column: 10}

	err := UndefinedSymbol("function", "calee", pos, []string{"callee", "caller", "main"})
	assert.Equal(t, ErrorUndefinedSymbol, err.Code)
	assert.Contains(t, err.Message, "undefined function '@calee'")
	assert.Len(t, err.Suggestions, 2)
	assert.Contains(t, err.Suggestions[0].Message, "@callee")
	assert.Contains(t, err.Suggestions[1].Message, "@caller")
}

func TestUnknownOpcodeError(t *testing.T) {
	pos := Position{Line: 3, Column: 3}

	err := UnknownOpcode("stack_aloc", pos, []string{"stack_alloc", "dealloc_stack", "load"})
	assert.Equal(t, ErrorUnknownOpcode, err.Code)
	assert.Equal(t, len("stack_aloc"), err.Length)
	assert.Len(t, err.Suggestions, 1)
	assert.Contains(t, err.Suggestions[0].Message, "stack_alloc")
}

func TestWarningFormatting(t *testing.T) {
	source := `  %1 = load [flagged] %0`
	reporter := NewErrorReporter("test.sir", source)

	err := UnknownFlag("load", "flagged", Position{Line: 1, Column: 8})
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "warning["+WarningUnknownFlag+"]")
	assert.Contains(t, formatted, "has no meaning on 'load'")
}

func TestErrorMarkerCreation(t *testing.T) {
	source := `  %1 = stack_alloc Buffer`
	reporter := NewErrorReporter("test.sir", source)

	marker := reporter.createMarker(8, 11, Error) // "stack_alloc" at column 8

	spaces := strings.Count(marker, " ")
	assert.Equal(t, 7, spaces)
	carets := strings.Count(marker, "^")
	assert.Equal(t, 11, carets)
}

func TestHasErrors(t *testing.T) {
	pos := Position{Line: 1, Column: 1}

	assert.False(t, HasErrors(nil))
	assert.False(t, HasErrors([]CompilerError{UnknownFlag("load", "x", pos)}))
	assert.True(t, HasErrors([]CompilerError{
		UnknownFlag("load", "x", pos),
		UndefinedBlock("bb9", pos),
	}))
}

func TestCompilerErrorImplementsError(t *testing.T) {
	err := MissingTerminator("bb1", Position{Filename: "a.sir", Line: 7, Column: 1})

	var e error = err
	assert.Equal(t, "a.sir:7:1: error["+ErrorMissingTerminator+"]: block 'bb1' does not end with a terminator", e.Error())
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("hello", "hello"))
	assert.Equal(t, 1, levenshteinDistance("hello", "hallo"))
	assert.Equal(t, 1, levenshteinDistance("hello", "helo"))
	assert.Equal(t, 5, levenshteinDistance("hello", ""))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestSimilarNameFinding(t *testing.T) {
	candidates := []string{"index_addr", "field_addr", "tail_addr", "xyz"}

	similar := findSimilarNames("index_adr", candidates)
	assert.Contains(t, similar, "index_addr")
	assert.NotContains(t, similar, "xyz")

	similar = findSimilarNames("verydifferent", candidates)
	assert.Empty(t, similar)
}

func TestErrorLevels(t *testing.T) {
	reporter := NewErrorReporter("test.sir", "test")
	pos := Position{Line: 1, Column: 1}

	errorErr := CompilerError{Level: Error, Message: "test error", Position: pos}
	warningErr := CompilerError{Level: Warning, Message: "test warning", Position: pos}

	assert.Contains(t, reporter.FormatError(errorErr), "error:")
	assert.Contains(t, reporter.FormatError(warningErr), "warning:")
}
