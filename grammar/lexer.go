package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var IRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `//[^\n]*`, nil},

		// Block labels carry their colon so they never collide with operands
		{"Label", `[a-zA-Z_][a-zA-Z0-9_]*:`, nil},

		// Keywords, opcodes, type and field names
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},

		// %local values and @global symbols
		{"Value", `%[a-zA-Z0-9_.]+`, nil},
		{"Global", `@[a-zA-Z0-9_.$]+`, nil},

		// Integer literals
		{"Integer", `-?[0-9]+`, nil},

		// Punctuation
		{"Punctuation", `[(){}[\],=*:]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
