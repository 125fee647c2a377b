// Package token defines the token types for the struct schema language.
//
// Core tokens are defined as constants for switch performance.
// Callers building their own grammars on top of pkg/lexer can allocate
// additional token types at runtime via Register().
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

//nolint:revive // ALL_CAPS names follow the lexer convention
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	NUMBER // 123, -4
	EXPR   // helper expression captured after '|'

	// Punctuation
	COLON    // :
	SEMI     // ;
	COMMA    // ,
	EQ       // =
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Trivia, normally dropped by the lexer
	WS
	NEWLINE
	COMMENT

	// Type keywords
	INT
	FLOAT
	DOUBLE
	STRING
	STATIC_STRING
	ARRAY
	ITER
	ABSTRACT
	SHORT
	BYTE
	BOOL

	maxBuiltin TokenType = 999
)

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	EXPR:   "EXPR",

	COLON:    ":",
	SEMI:     ";",
	COMMA:    ",",
	EQ:       "=",
	LBRACE:   "{",
	RBRACE:   "}",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",

	WS:      "WS",
	NEWLINE: "NEWLINE",
	COMMENT: "COMMENT",

	INT:           "int",
	FLOAT:         "float",
	DOUBLE:        "double",
	STRING:        "string",
	STATIC_STRING: "static_string",
	ARRAY:         "array",
	ITER:          "iter",
	ABSTRACT:      "abstract",
	SHORT:         "short",
	BYTE:          "byte",
	BOOL:          "bool",
}

// keywords maps reserved words to their token types.
// Keywords are case-sensitive in the schema language.
var keywords = map[string]TokenType{
	"int":           INT,
	"float":         FLOAT,
	"double":        DOUBLE,
	"string":        STRING,
	"static_string": STATIC_STRING,
	"array":         ARRAY,
	"iter":          ITER,
	"abstract":      ABSTRACT,
	"short":         SHORT,
	"byte":          BYTE,
	"bool":          BOOL,
}

// String returns the string representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	if name, ok := getDynamicName(t); ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// LookupIdent returns the keyword token type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a type keyword.
func IsKeyword(t TokenType) bool {
	return t >= INT && t <= BOOL
}

// IsTrivia returns true for whitespace, newlines and comments.
func IsTrivia(t TokenType) bool {
	return t == WS || t == NEWLINE || t == COMMENT
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// String returns a short human readable form of the token.
func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "EOF"
	case IDENT, NUMBER, EXPR, ILLEGAL:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	}
	return fmt.Sprintf("%q", t.Literal)
}
