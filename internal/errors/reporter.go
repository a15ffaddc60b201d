package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of an error
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
	Note    ErrorLevel = "note"
	Help    ErrorLevel = "help"
)

// CompilerError represents a structured error with suggestions and context
type CompilerError struct {
	Level       ErrorLevel
	Code        string       // Error code like E0201
	Message     string       // Primary error message
	Position    Position     // Location in source
	Length      int          // Length of the problematic region
	Suggestions []Suggestion // Suggested fixes
	Notes       []string     // Additional context notes
	HelpText    string       // Help text for the error
}

// Suggestion represents a suggested fix
type Suggestion struct {
	Message     string   // Description of the suggestion
	Replacement string   // Suggested replacement text (optional)
	Position    Position // Position to apply the fix (optional)
	Length      int      // Length of text to replace (optional)
}

// Position is a location in a textual IR file
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Error implements the error interface so diagnostics can be wrapped
func (e CompilerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s[%s]: %s", e.Position, e.Level, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Position, e.Level, e.Message)
}

// ErrorReporter renders diagnostics against the text of one IR file
type ErrorReporter struct {
	filename string
	lines    []string
}

// NewErrorReporter creates a reporter for the named source text
func NewErrorReporter(filename, source string) *ErrorReporter {
	return &ErrorReporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

var (
	levelStyles = map[ErrorLevel]*color.Color{
		Error:   color.New(color.FgRed, color.Bold),
		Warning: color.New(color.FgYellow, color.Bold),
		Note:    color.New(color.FgBlue, color.Bold),
		Help:    color.New(color.FgGreen, color.Bold),
	}
	gutterStyle     = color.New(color.Faint)
	lineNumberStyle = color.New(color.Bold)
	suggestStyle    = color.New(color.FgCyan)
	noteStyle       = color.New(color.FgBlue)
	helpStyle       = color.New(color.FgGreen)
)

func levelStyle(level ErrorLevel) *color.Color {
	if style, ok := levelStyles[level]; ok {
		return style
	}
	return levelStyles[Error]
}

// gutter writes the left margin of a rendered diagnostic
type gutter struct {
	out   *strings.Builder
	width int
}

func (g gutter) blank() string {
	return strings.Repeat(" ", g.width)
}

// line writes "<margin> │ text"; a zero number leaves the margin empty
func (g gutter) line(number int, style *color.Color, text string) {
	margin := g.blank()
	if number > 0 {
		margin = style.Sprintf("%*d", g.width, number)
	}
	fmt.Fprintf(g.out, "%s %s %s\n", margin, gutterStyle.Sprint("│"), text)
}

// rule writes an empty separator line
func (g gutter) rule() {
	fmt.Fprintf(g.out, "%s %s\n", g.blank(), gutterStyle.Sprint("│"))
}

// FormatError renders a diagnostic in the style of
//
//	error[E0201]: use of undefined value '%bufer'
//	    --> test.sir:4:13
//	     │
//	   3 │ bb0:
//	   4 │   %1 = load %bufer
//	     │             ^^^^^^
//	     │ help try: did you mean '%buffer'?
func (er *ErrorReporter) FormatError(err CompilerError) string {
	var out strings.Builder
	header := levelStyle(err.Level).Sprint(string(err.Level))
	if err.Code != "" {
		header += "[" + err.Code + "]"
	}
	fmt.Fprintf(&out, "%s: %s\n", header, err.Message)

	g := gutter{out: &out, width: max(len(fmt.Sprint(err.Position.Line)), 3)}
	fmt.Fprintf(&out, "%s %s %s:%d:%d\n", g.blank(), gutterStyle.Sprint("-->"),
		er.filename, err.Position.Line, err.Position.Column)
	g.rule()

	er.writeSnippet(g, err)

	if len(err.Suggestions) > 0 {
		g.rule()
	}
	for i, suggestion := range err.Suggestions {
		label := "    "
		if i == 0 {
			label = "help try:"
		}
		fmt.Fprintf(&out, "%s %s %s\n", g.blank(), suggestStyle.Sprint(label), suggestion.Message)
		if suggestion.Replacement != "" {
			g.rule()
			for _, text := range strings.Split(suggestion.Replacement, "\n") {
				g.line(0, nil, suggestStyle.Sprint(text))
			}
		}
	}
	for _, note := range err.Notes {
		g.line(0, nil, noteStyle.Sprint("note:")+" "+note)
	}
	if err.HelpText != "" {
		g.line(0, nil, helpStyle.Sprint("help:")+" "+err.HelpText)
	}

	out.WriteString("\n")
	return out.String()
}

// writeSnippet prints the offending line with one line of context on each
// side and a marker under the reported span.
func (er *ErrorReporter) writeSnippet(g gutter, err CompilerError) {
	line := err.Position.Line
	if prev := line - 1; prev >= 1 && prev <= len(er.lines) {
		g.line(prev, gutterStyle, er.lines[prev-1])
	}
	if line >= 1 && line <= len(er.lines) {
		g.line(line, lineNumberStyle, er.lines[line-1])
		g.line(0, nil, er.createMarker(err.Position.Column, err.Length, err.Level))
	}
	if next := line + 1; next >= 2 && next <= len(er.lines) {
		g.line(next, gutterStyle, er.lines[next-1])
	}
}

// createMarker underlines length columns starting at column
func (er *ErrorReporter) createMarker(column, length int, level ErrorLevel) string {
	return strings.Repeat(" ", max(column-1, 0)) + levelStyle(level).Sprint(strings.Repeat("^", max(length, 1)))
}
