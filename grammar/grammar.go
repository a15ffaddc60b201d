package grammar

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// File is one textual IR module:
//
//	module demo
//	global @counter : Int64
//	table @vtable { @f }
//	public func @f(%0: inout *Buf) [stack_protection] {
//	bb0:
//	  %1 = address_to_pointer [flagged] %0
//	  br bb1
//	bb1:
//	  %2 = phi RawPointer { bb0: %1 }
//	  return
//	}
type File struct {
	Pos   lexer.Position
	Name  string  `"module" @Ident`
	Decls []*Decl `@@*`
}

type Decl struct {
	Global   *Global   `  @@`
	Table    *Table    `| @@`
	Function *Function `| @@`
}

type Global struct {
	Pos  lexer.Position
	Name string `"global" @Global ":"`
	Type *Type  `@@`
}

type Table struct {
	Pos     lexer.Position
	Name    string   `"table" @Global "{"`
	Entries []string `( @Global ( "," @Global )* )? "}"`
}

type Function struct {
	Pos        lexer.Position
	Public     bool     `@"public"?`
	Name       string   `"func" @Global "("`
	Params     []*Param `( @@ ( "," @@ )* )? ")"`
	Attributes []string `( "[" @Ident ( "," @Ident )* "]" )?`
	Blocks     []*Block `"{" @@* "}"`
}

type Param struct {
	Pos        lexer.Position
	Name       string `@Value ":"`
	Convention string `@( "value" | "inout_aliasable" | "inout" | "in" | "out" )?`
	Type       *Type  `@@`
}

type Type struct {
	Pos     lexer.Position
	Address bool   `@"*"?`
	Name    string `@Ident`
}

type Block struct {
	Pos          lexer.Position
	Label        string         `@Label`
	Instructions []*Instruction `@@*`
}

type Instruction struct {
	Pos      lexer.Position
	Result   string     `( @Value "=" )?`
	Opcode   string     `@Ident`
	Flags    []string   `( "[" @Ident ( "," @Ident )* "]" )?`
	Operands []*Operand  `( @@ ( "," @@ )* )?`
	Incoming []*Incoming `( "{" @@ ( "," @@ )* "}" )?`
	Args     []string    `( "(" ( @Value ( "," @Value )* )? ")" )?`
	Type     *Type       `( ":" @@ )?`
}

type Operand struct {
	Pos     lexer.Position
	Value   string `  @Value`
	Global  string `| @Global`
	Integer *int64 `| @Integer`
	Type    *Type  `| @@`
}

// Incoming is a phi input: "bb1: %v"
type Incoming struct {
	Pos   lexer.Position
	Block string `@Label`
	Value string `@Value`
}

// BlockName strips the colon of a label token
func BlockName(label string) string {
	return strings.TrimSuffix(label, ":")
}

// Symbol strips the sigil of a %value or @global token
func Symbol(token string) string {
	return strings.TrimLeft(token, "%@")
}

// HasFlag reports whether the instruction carries the bracketed flag
func (i *Instruction) HasFlag(name string) bool {
	for _, flag := range i.Flags {
		if flag == name {
			return true
		}
	}
	return false
}
