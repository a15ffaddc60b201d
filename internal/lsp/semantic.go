package lsp

import (
	"fmt"
	"slices"

	"github.com/alecthomas/participle/v2/lexer"

	"stackprot/grammar"
	"stackprot/internal/ir"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into the semanticTokenTypes array
// TokenModifiers is a bitmask based on semanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int // index into semanticTokenTypes
	TokenModifiers int // bitmask
}

var keywords = []string{"module", "global", "table", "public", "func"}

var conventions = []string{
	string(ir.ConventionDirect),
	string(ir.ConventionIndirectIn),
	string(ir.ConventionIndirectInout),
	string(ir.ConventionIndirectInoutAliased),
	string(ir.ConventionIndirectOut),
}

// collectSemanticTokens classifies the tokens of a document. It only needs
// the lexer, so documents with syntax errors are still highlighted.
func collectSemanticTokens(text string) ([]SemanticToken, error) {
	lex, err := grammar.IRLexer.LexString("", text)
	if err != nil {
		return nil, err
	}
	symbols := grammar.IRLexer.Symbols()

	var toks []lexer.Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize document: %w", err)
		}
		if tok.EOF() {
			break
		}
		if tok.Type != symbols["Whitespace"] {
			toks = append(toks, tok)
		}
	}

	var tokens []SemanticToken
	inFlags := false
	for i, tok := range toks {
		next := ""
		if i+1 < len(toks) {
			next = toks[i+1].Value
		}

		var kind string
		modifiers := 0
		length := len(tok.Value)

		switch tok.Type {
		case symbols["Comment"]:
			kind = "comment"
		case symbols["Label"]:
			kind = "namespace"
			length--
		case symbols["Global"]:
			kind = "function"
		case symbols["Integer"]:
			kind = "number"
		case symbols["Value"]:
			switch next {
			case ":":
				kind, modifiers = "parameter", 1
			case "=":
				kind, modifiers = "variable", 1
			default:
				kind = "variable"
			}
		case symbols["Ident"]:
			switch {
			case inFlags:
				kind = "modifier"
			case slices.Contains(keywords, tok.Value), slices.Contains(ir.Opcodes, tok.Value), slices.Contains(conventions, tok.Value):
				kind = "keyword"
			default:
				kind = "type"
			}
		case symbols["Punctuation"]:
			switch tok.Value {
			case "[":
				inFlags = true
			case "]":
				inFlags = false
			}
			continue
		default:
			continue
		}

		tokens = append(tokens, SemanticToken{
			Line:           uint32(tok.Pos.Line - 1),
			StartChar:      uint32(tok.Pos.Column - 1),
			Length:         uint32(length),
			TokenType:      slices.Index(SemanticTokenTypes, kind),
			TokenModifiers: modifiers,
		})
	}
	return tokens, nil
}
