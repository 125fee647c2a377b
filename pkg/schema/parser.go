// Package schema parses and formats the struct schema language.
//
// # Grammar
//
//	schema  → struct*
//	struct  → IDENT ["id" "=" NUMBER] "{" field* "}"
//	field   → name ":" type ["|" expr ["|" expr]] ";"
//	name    → IDENT | NUMBER | keyword
//	type    → "int" | "float" | "double" | "string" | "short" | "byte" | "bool"
//	        | "static_string" "[" NUMBER "]"
//	        | "array" "(" [IDENT ","] type ")"
//	        | "iter" "(" [IDENT ","] type ")"
//	        | "abstract" "(" IDENT ")"
//	        | IDENT
//
// The first expression after a field type is its get expression, the
// second its set expression. Expressions are taken verbatim up to the end
// of the line and are not tokenized; a bitwise or inside an expression
// must be parenthesized. Line comments start with "//".
package schema

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/structkit/pkg/lexer"
	"github.com/leapstack-labs/structkit/pkg/token"
)

// Parser is a recursive descent parser over schema text.
type Parser struct {
	lexer *lexer.Lexer
	src   string
	token token.Token // current token
	peek  token.Token // lookahead token
	err   error
}

// NewParser creates a parser for src.
func NewParser(src string) *Parser {
	p := &Parser{lexer: newLexer(src), src: src}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses every struct declared in src.
func Parse(src string) ([]*StructDef, error) {
	p := NewParser(src)
	var defs []*StructDef
	for !p.check(token.EOF) && p.err == nil {
		def := p.parseStruct()
		if p.err != nil {
			break
		}
		defs = append(defs, def)
	}
	if p.err != nil {
		return nil, p.err
	}
	return defs, nil
}

// ParseOne parses src, which must declare exactly one struct.
func ParseOne(src string) (*StructDef, error) {
	defs, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(defs) != 1 {
		return nil, &ParseError{
			Pos:     token.Position{Line: 1, Column: 1},
			Message: fmt.Sprintf(ErrExpectedOne, len(defs)),
			Context: numberLines(src, 0),
		}
	}
	return defs[0], nil
}

// ---------- Token Helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	tok, err := p.lexer.Next()
	if err != nil {
		p.failLex(err)
		tok = token.Token{Type: token.EOF, Pos: p.lexer.Position()}
	}
	p.peek = tok
}

func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// addError records the first parse error; later ones are consequences.
func (p *Parser) addError(msg string) {
	p.addErrorAt(p.token, msg)
}

func (p *Parser) addErrorAt(tok token.Token, msg string) {
	if p.err != nil {
		return
	}
	p.err = &ParseError{
		Pos:     tok.Pos,
		Token:   tok.Literal,
		Message: msg,
		Context: numberLines(p.src, tok.Pos.Line),
	}
}

func (p *Parser) failLex(err error) {
	if p.err != nil {
		return
	}
	pe := &ParseError{Message: err.Error(), Cause: err, Context: numberLines(p.src, 0)}
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		pe.Pos = lexErr.Pos
		pe.Token = lexErr.Near
		pe.Message = lexErr.Message
		pe.Context = numberLines(p.src, lexErr.Pos.Line)
	}
	p.err = pe
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "EOF"
	}
	return tok.String()
}

// ---------- Grammar ----------

// parseStruct parses: IDENT ["id" "=" NUMBER] "{" field* "}"
func (p *Parser) parseStruct() *StructDef {
	def := &StructDef{Name: p.token.Literal}
	if !p.expect(token.IDENT) {
		return nil
	}

	if p.check(token.IDENT) && p.token.Literal == "id" && p.checkPeek(token.EQ) {
		p.nextToken()
		p.nextToken()
		lit := p.token.Literal
		if !p.expect(token.NUMBER) {
			return nil
		}
		id, err := strconv.ParseInt(lit, 10, 32)
		if err != nil || id <= 0 {
			p.addError(fmt.Sprintf(ErrBadStructID, lit))
			return nil
		}
		def.ID = int32(id)
	}

	if !p.expect(token.LBRACE) {
		return nil
	}
	seen := make(map[string]bool)
	for !p.check(token.RBRACE) {
		if p.check(token.EOF) {
			p.expect(token.RBRACE)
			return nil
		}
		start := p.token
		field, ok := p.parseField()
		if !ok {
			return nil
		}
		if seen[field.Name] {
			p.addErrorAt(start, fmt.Sprintf(ErrDuplicateField, field.Name, def.Name))
			return nil
		}
		seen[field.Name] = true
		def.Fields = append(def.Fields, field)
	}
	p.nextToken()
	return def
}

// parseField parses: name ":" type ["|" expr ["|" expr]] ";"
func (p *Parser) parseField() (Field, bool) {
	var f Field
	switch {
	case p.check(token.IDENT), p.check(token.NUMBER), token.IsKeyword(p.token.Type):
		f.Name = p.token.Literal
		p.nextToken()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "field name"))
		return f, false
	}

	if !p.expect(token.COLON) {
		return f, false
	}
	f.Type = p.parseType()
	if f.Type == nil {
		return f, false
	}

	var exprs []string
	for p.check(token.EXPR) {
		if len(exprs) == 2 {
			p.addError(ErrTooManyExprs)
			return f, false
		}
		if p.token.Literal == "" {
			p.addError(ErrEmptyExpression)
			return f, false
		}
		exprs = append(exprs, p.token.Literal)
		p.nextToken()
	}
	if len(exprs) > 0 {
		f.Get = exprs[0]
	}
	if len(exprs) > 1 {
		f.Set = exprs[1]
	}

	if !p.expect(token.SEMI) {
		return f, false
	}
	return f, true
}

// parseType parses a type reference.
func (p *Parser) parseType() *Type {
	tok := p.token
	switch tok.Type {
	case token.INT:
		p.nextToken()
		return &Type{Kind: KindInt}
	case token.FLOAT:
		p.nextToken()
		return &Type{Kind: KindFloat}
	case token.DOUBLE:
		p.nextToken()
		return &Type{Kind: KindDouble}
	case token.STRING:
		p.nextToken()
		return &Type{Kind: KindString}
	case token.SHORT:
		p.nextToken()
		return &Type{Kind: KindShort}
	case token.BYTE:
		p.nextToken()
		return &Type{Kind: KindByte}
	case token.BOOL:
		p.nextToken()
		return &Type{Kind: KindBool}
	case token.STATIC_STRING:
		return p.parseStaticString()
	case token.ARRAY:
		return p.parseSequence(KindArray)
	case token.ITER:
		return p.parseSequence(KindIter)
	case token.ABSTRACT:
		p.nextToken()
		if !p.expect(token.LPAREN) {
			return nil
		}
		name := p.token.Literal
		if !p.expect(token.IDENT) || !p.expect(token.RPAREN) {
			return nil
		}
		return &Type{Kind: KindAbstract, StructName: name}
	case token.IDENT:
		p.nextToken()
		return &Type{Kind: KindStruct, StructName: tok.Literal}
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(tok), "type"))
	return nil
}

// parseStaticString parses: "static_string" "[" NUMBER "]"
func (p *Parser) parseStaticString() *Type {
	p.nextToken()
	if !p.expect(token.LBRACKET) {
		return nil
	}
	lit := p.token.Literal
	if !p.expect(token.NUMBER) {
		return nil
	}
	n, err := strconv.Atoi(lit)
	if err != nil || n <= 0 {
		p.addError(fmt.Sprintf(ErrBadMaxLength, lit))
		return nil
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	return &Type{Kind: KindStaticString, MaxLen: n}
}

// parseSequence parses: ("array" | "iter") "(" [IDENT ","] type ")"
func (p *Parser) parseSequence(kind Kind) *Type {
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}
	t := &Type{Kind: kind}
	if p.check(token.IDENT) && p.checkPeek(token.COMMA) {
		t.IterVar = p.token.Literal
		p.nextToken()
		p.nextToken()
	}
	t.Elem = p.parseType()
	if t.Elem == nil || !p.expect(token.RPAREN) {
		return nil
	}
	return t
}

