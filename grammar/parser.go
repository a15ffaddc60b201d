package grammar

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var irParser = participle.MustBuild[File](
	participle.Lexer(IRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse parses textual IR source
func Parse(filename, source string) (*File, error) {
	return irParser.ParseString(filename, source)
}

// ParseFile reads and parses a textual IR file
func ParseFile(path string) (*File, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(path, string(source))
}

// ErrorPosition extracts the source position and bare message of a parse error.
func ErrorPosition(err error) (lexer.Position, string, bool) {
	var pe participle.Error
	if !errors.As(err, &pe) {
		return lexer.Position{}, "", false
	}
	return pe.Position(), pe.Message(), true
}
