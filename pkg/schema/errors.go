package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/structkit/pkg/token"
)

// ParseError is a fatal schema grammar error.
type ParseError struct {
	Pos     token.Position
	Token   string // literal text of the offending token
	Message string
	Context string // line-numbered dump of the whole schema text
	Cause   error  // underlying lexer error, if any
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parse error at line %d, column %d: %s (near %q)", e.Pos.Line, e.Pos.Column, e.Message, e.Token)
	}
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Common error messages
const (
	ErrUnexpectedToken = "unexpected token %s, expected %s"
	ErrEmptyExpression = "empty helper expression"
	ErrBadMaxLength    = "static_string length must be a positive integer, got %s"
	ErrBadStructID     = "struct id must be a positive integer, got %s"
	ErrTooManyExprs    = "a field takes at most two helper expressions"
	ErrDuplicateField  = "duplicate field %q in struct %s"
	ErrExpectedOne     = "expected exactly one struct, found %d"
)

// numberLines renders src with 1-based line numbers, marking errLine.
func numberLines(src string, errLine int) string {
	lines := strings.Split(src, "\n")
	width := len(fmt.Sprint(len(lines)))
	var sb strings.Builder
	for i, line := range lines {
		marker := "  "
		if i+1 == errLine {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%s%*d: %s\n", marker, width, i+1, line)
	}
	return sb.String()
}
