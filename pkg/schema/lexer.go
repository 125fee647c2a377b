package schema

import (
	"strings"

	"github.com/leapstack-labs/structkit/pkg/lexer"
	"github.com/leapstack-labs/structkit/pkg/token"
)

// tokenDefs is the token table of the schema language.
var tokenDefs = []lexer.TokenDef{
	lexer.Def(token.IDENT, `[a-zA-Z_$][a-zA-Z0-9_$]*`, keywordTransform),
	lexer.Def(token.NUMBER, `-?[0-9]+`),
	lexer.Def(token.COLON, `:`),
	lexer.Def(token.SEMI, `;`),
	lexer.Def(token.COMMA, `,`),
	lexer.Def(token.EQ, `=`),
	lexer.Def(token.LBRACE, `\{`),
	lexer.Def(token.RBRACE, `\}`),
	lexer.Def(token.LPAREN, `\(`),
	lexer.Def(token.RPAREN, `\)`),
	lexer.Def(token.LBRACKET, `\[`),
	lexer.Def(token.RBRACKET, `\]`),
	lexer.Def(token.EXPR, `\|`, captureExpr),
	lexer.Def(token.COMMENT, `//[^\n]*`, lexer.Skip),
	lexer.Def(token.WS, `[ \t\r]+`, lexer.Skip),
	lexer.Def(token.NEWLINE, `\n`, lexer.Skip),
}

func newLexer(src string) *lexer.Lexer {
	l := lexer.New(tokenDefs)
	l.Input(src)
	return l
}

func keywordTransform(_ *lexer.Lexer, tok *token.Token) (bool, error) {
	tok.Type = token.LookupIdent(tok.Literal)
	return true, nil
}

// captureExpr takes the raw text following a '|' as a helper expression.
// The expression runs to the end of the line or to the next top-level '|'.
// Trailing semicolons are handed back to the lexer so they terminate the
// field as usual.
func captureExpr(l *lexer.Lexer, tok *token.Token) (bool, error) {
	src := l.Source()
	start := l.Offset()
	end := scanExpr(src, start)

	text := strings.TrimRight(src[start:end], " \t\r")
	for strings.HasSuffix(text, ";") {
		text = strings.TrimRight(text[:len(text)-1], " \t\r")
	}

	tok.Literal = strings.TrimSpace(text)
	l.SetOffset(start + len(text))
	return true, nil
}

// scanExpr returns the offset at which the expression starting at start
// ends. A '|' ends it only outside brackets and quotes, and only when it
// is not half of '||'.
func scanExpr(src string, start int) int {
	depth := 0
	var quote byte
	for i := start; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			case '\n':
				return i
			}
			continue
		}
		switch c {
		case '\n':
			return i
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth > 0 {
				continue
			}
			if i+1 < len(src) && src[i+1] == '|' {
				i++
				continue
			}
			return i
		}
	}
	return len(src)
}
