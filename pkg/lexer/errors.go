package lexer

import (
	"fmt"

	"github.com/leapstack-labs/structkit/pkg/token"
)

// contextChars is how much upcoming input an Error quotes.
const contextChars = 8

// Error is a fatal lexing failure.
type Error struct {
	Pos     token.Position
	Message string
	Line    string // full text of the offending line
	Near    string // the next few characters of input
}

func (e *Error) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s\n  %d| %s\n  near %q",
		e.Pos.Line, e.Pos.Column, e.Message, e.Pos.Line, e.Line, e.Near)
}
