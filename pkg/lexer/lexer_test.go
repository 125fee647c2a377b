package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/structkit/pkg/token"
)

var (
	tokWord  = token.Register("TEST_WORD")
	tokIf    = token.Register("TEST_IF")
	tokArrow = token.Register("TEST_ARROW")
	tokMinus = token.Register("TEST_MINUS")
	tokStr   = token.Register("TEST_STR")
)

func testDefs() []TokenDef {
	return []TokenDef{
		Def(tokIf, `if`),
		Def(tokWord, `[a-z]+`),
		Def(token.NUMBER, `[0-9]+`),
		Def(tokArrow, `->`),
		Def(tokMinus, `-`),
		Def(token.WS, `[ \t]+`, Skip),
		Def(token.NEWLINE, `\n`, Skip),
	}
}

func types(tokens []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestLexer_LongestMatchWins(t *testing.T) {
	l := New(testDefs())
	l.Input("iffy if - -> 42")

	tokens, err := l.Tokenize()
	require.NoError(t, err)

	assert.Equal(t, []token.TokenType{tokWord, tokIf, tokMinus, tokArrow, token.NUMBER}, types(tokens))
	assert.Equal(t, "iffy", tokens[0].Literal)
}

func TestLexer_TiesGoToFirstDefinition(t *testing.T) {
	l := New(testDefs())
	l.Input("if")

	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, tokIf, tok.Type)

	// Reversed order flips the winner.
	defs := testDefs()
	defs[0], defs[1] = defs[1], defs[0]
	l = New(defs)
	l.Input("if")
	tok, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, tokWord, tok.Type)
}

func TestLexer_Positions(t *testing.T) {
	l := New(testDefs())
	l.Input("a\n  bc 7")

	tokens, err := l.Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, token.Position{Line: 1, Column: 1, Offset: 0}, tokens[0].Pos)
	assert.Equal(t, token.Position{Line: 2, Column: 3, Offset: 4}, tokens[1].Pos)
	assert.Equal(t, token.Position{Line: 2, Column: 6, Offset: 7}, tokens[2].Pos)
}

func TestLexer_PeekDoesNotConsume(t *testing.T) {
	l := New(testDefs())
	l.Input("a b")

	p, err := l.Peek()
	require.NoError(t, err)
	n, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, p, n)

	n, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", n.Literal)

	n, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, token.EOF, n.Type)
}

func TestLexer_FatalErrorHasContext(t *testing.T) {
	l := New(testDefs())
	l.Input("abc\nde ?fghijklmnop\nxyz")

	_, err := l.Tokenize()
	require.Error(t, err)

	var lexErr *Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 2, lexErr.Pos.Line)
	assert.Equal(t, 4, lexErr.Pos.Column)
	assert.Equal(t, "de ?fghijklmnop", lexErr.Line)
	assert.Equal(t, "?fghijkl", lexErr.Near)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLexer_LenientErrorYieldsIllegal(t *testing.T) {
	l := New(testDefs(), WithErrorFunc(Lenient))
	l.Input("a ? b")

	tokens, err := l.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, []token.TokenType{tokWord, token.ILLEGAL, tokWord}, types(tokens))
	assert.Equal(t, "?", tokens[1].Literal)
}

func TestLexer_ErrorFuncSeesLexer(t *testing.T) {
	var sawOffset int
	l := New(testDefs(), WithErrorFunc(func(l *Lexer) bool {
		sawOffset = l.Offset()
		return true
	}))
	l.Input("ab %")

	_, err := l.Tokenize()
	require.Error(t, err)
	assert.Equal(t, 3, sawOffset)
}

func TestLexer_TransformConsumesInput(t *testing.T) {
	// A quote token that swallows everything up to the closing quote.
	quote := func(l *Lexer, tok *token.Token) (bool, error) {
		src := l.Source()
		end := strings.IndexByte(src[l.Offset():], '"')
		if end < 0 {
			return false, l.Errorf("unterminated string")
		}
		tok.Type = tokStr
		tok.Literal = src[l.Offset() : l.Offset()+end]
		l.SetOffset(l.Offset() + end + 1)
		return true, nil
	}
	defs := append(testDefs(), Def(tokStr, `"`, quote))

	l := New(defs)
	l.Input(`a "x -> y" b`)
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokStr, tokens[1].Type)
	assert.Equal(t, "x -> y", tokens[1].Literal)
	assert.Equal(t, "b", tokens[2].Literal)

	l.Input(`a "open`)
	_, err = l.Tokenize()
	assert.ErrorContains(t, err, "unterminated string")
}

func TestLexer_SetOffsetBackwardsRecomputesLine(t *testing.T) {
	l := New(testDefs())
	l.Input("a\nb\nc")
	_, err := l.Tokenize()
	require.NoError(t, err)
	assert.Equal(t, 3, l.Line())

	l.SetOffset(2)
	assert.Equal(t, 2, l.Line())
	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", tok.Literal)
}

func TestLexer_States(t *testing.T) {
	digitsOnly := []TokenDef{
		Def(token.NUMBER, `[0-9]`),
	}
	l := New(testDefs(), WithState("digits", digitsOnly, nil))
	l.Input("123")

	require.NoError(t, l.PushState("digits"))
	tokens, err := l.Tokenize()
	require.NoError(t, err)
	assert.Len(t, tokens, 3, "digits state matches one digit at a time")

	l.Input("123")
	require.NoError(t, l.PushState("digits"))
	l.PopState()
	tokens, err = l.Tokenize()
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	assert.Error(t, l.PushState("missing"))
}
