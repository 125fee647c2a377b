// Package lexer provides a small table-driven regular expression tokenizer.
//
// A Lexer is built from an ordered list of token definitions. At each
// position every definition of the active state is tried against the
// remaining input; the longest match wins and ties go to the definition
// listed first. A definition may carry a Transform that rewrites the
// token, consumes extra input, or drops the token entirely.
//
// Lexers are stateful and single-goroutine. Definitions are immutable once
// built and may be shared between lexers.
package lexer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/structkit/pkg/token"
)

// DefaultState is the name of the state a new Lexer starts in.
const DefaultState = "default"

// TransformFunc post-processes a matched token. Returning keep=false drops
// the token and lexing resumes at the current offset. A non-nil error
// aborts lexing.
type TransformFunc func(l *Lexer, tok *token.Token) (keep bool, err error)

// ErrorFunc is consulted when no definition matches. Returning true makes
// the failure fatal; returning false swallows it and the offending byte is
// delivered as an ILLEGAL token for the caller to deal with.
type ErrorFunc func(l *Lexer) bool

// TokenDef describes one token kind.
type TokenDef struct {
	Type      token.TokenType
	Pattern   *regexp.Regexp
	Transform TransformFunc
}

// Def compiles pattern into a TokenDef anchored at the current offset.
// It panics if the pattern does not compile, like regexp.MustCompile.
func Def(typ token.TokenType, pattern string, transform ...TransformFunc) TokenDef {
	re := regexp.MustCompile(`^(?:` + pattern + `)`)
	re.Longest()
	def := TokenDef{Type: typ, Pattern: re}
	if len(transform) > 0 {
		def.Transform = transform[0]
	}
	return def
}

// Skip is a Transform that drops the token.
func Skip(*Lexer, *token.Token) (bool, error) { return false, nil }

// Fatal is an ErrorFunc that makes every lexing failure fatal.
func Fatal(*Lexer) bool { return true }

// Lenient is an ErrorFunc that swallows every lexing failure.
func Lenient(*Lexer) bool { return false }

type state struct {
	defs    []TokenDef
	onError ErrorFunc
}

// Lexer tokenizes an input string.
type Lexer struct {
	states map[string]*state
	stack  []string
	cur    *state

	src    string
	offset int
	line   int
	column int

	peeked    *token.Token
	peekedErr error
}

// Option configures a Lexer.
type Option func(*Lexer)

// WithErrorFunc sets the error callback of the default state.
func WithErrorFunc(fn ErrorFunc) Option {
	return func(l *Lexer) {
		l.states[DefaultState].onError = fn
	}
}

// WithState registers an additional named state.
func WithState(name string, defs []TokenDef, onError ErrorFunc) Option {
	return func(l *Lexer) {
		l.AddState(name, defs, onError)
	}
}

// New creates a Lexer whose default state uses defs.
// Without WithErrorFunc every lexing failure is fatal.
func New(defs []TokenDef, opts ...Option) *Lexer {
	l := &Lexer{
		states: make(map[string]*state),
		line:   1,
		column: 1,
	}
	l.AddState(DefaultState, defs, Fatal)
	for _, opt := range opts {
		opt(l)
	}
	l.cur = l.states[DefaultState]
	return l
}

// AddState registers or replaces a named state. A nil onError means Fatal.
func (l *Lexer) AddState(name string, defs []TokenDef, onError ErrorFunc) {
	if onError == nil {
		onError = Fatal
	}
	l.states[name] = &state{defs: defs, onError: onError}
	if l.cur == nil && name == DefaultState {
		l.cur = l.states[name]
	}
}

// PushState switches to the named state, remembering the current one.
func (l *Lexer) PushState(name string) error {
	st, ok := l.states[name]
	if !ok {
		return fmt.Errorf("lexer: unknown state %q", name)
	}
	l.stack = append(l.stack, name)
	l.cur = st
	l.peeked, l.peekedErr = nil, nil
	return nil
}

// PopState returns to the state active before the last PushState.
// Popping with an empty stack is a no-op.
func (l *Lexer) PopState() {
	if len(l.stack) == 0 {
		return
	}
	l.stack = l.stack[:len(l.stack)-1]
	name := DefaultState
	if n := len(l.stack); n > 0 {
		name = l.stack[n-1]
	}
	l.cur = l.states[name]
	l.peeked, l.peekedErr = nil, nil
}

// Input resets the lexer to the start of src in the default state.
func (l *Lexer) Input(src string) {
	l.src = src
	l.offset = 0
	l.line = 1
	l.column = 1
	l.stack = l.stack[:0]
	l.cur = l.states[DefaultState]
	l.peeked, l.peekedErr = nil, nil
}

// Source returns the full input.
func (l *Lexer) Source() string { return l.src }

// Offset returns the current byte offset.
func (l *Lexer) Offset() int { return l.offset }

// Line returns the current 1-based line number.
func (l *Lexer) Line() int { return l.line }

// Position returns the current position.
func (l *Lexer) Position() token.Position {
	return token.Position{Line: l.line, Column: l.column, Offset: l.offset}
}

// SetOffset moves the lexer to an absolute byte offset. Transforms use it
// to consume input beyond the matched text or to give some back.
func (l *Lexer) SetOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.src) {
		offset = len(l.src)
	}
	if offset < l.offset {
		l.offset, l.line, l.column = 0, 1, 1
	}
	l.advance(offset - l.offset)
	l.peeked, l.peekedErr = nil, nil
}

func (l *Lexer) advance(n int) {
	end := l.offset + n
	for ; l.offset < end; l.offset++ {
		if l.src[l.offset] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
	}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (token.Token, error) {
	if l.peeked == nil {
		tok, err := l.next()
		l.peeked, l.peekedErr = &tok, err
	}
	return *l.peeked, l.peekedErr
}

// Next returns the next token. At end of input it returns an EOF token.
func (l *Lexer) Next() (token.Token, error) {
	if l.peeked != nil {
		tok, err := *l.peeked, l.peekedErr
		l.peeked, l.peekedErr = nil, nil
		return tok, err
	}
	return l.next()
}

func (l *Lexer) next() (token.Token, error) {
	for {
		if l.offset >= len(l.src) {
			return token.Token{Type: token.EOF, Pos: l.Position()}, nil
		}

		rest := l.src[l.offset:]
		best, bestLen := -1, 0
		for i := range l.cur.defs {
			loc := l.cur.defs[i].Pattern.FindStringIndex(rest)
			if loc == nil || loc[0] != 0 {
				continue
			}
			if loc[1] > bestLen {
				best, bestLen = i, loc[1]
			}
		}

		if best < 0 {
			if l.cur.onError(l) {
				return token.Token{}, l.errorf("unexpected character %q", rest[0])
			}
			tok := token.Token{Type: token.ILLEGAL, Literal: rest[:1], Pos: l.Position()}
			l.advance(1)
			return tok, nil
		}

		def := l.cur.defs[best]
		tok := token.Token{Type: def.Type, Literal: rest[:bestLen], Pos: l.Position()}
		l.advance(bestLen)

		if def.Transform == nil {
			return tok, nil
		}
		keep, err := def.Transform(l, &tok)
		if err != nil {
			return token.Token{}, err
		}
		if keep {
			return tok, nil
		}
	}
}

// Tokenize lexes the whole input, returning every kept token up to but
// not including EOF.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var tokens []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		if tok.Type == token.EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Errorf builds an Error at the current position. Transforms use it to
// report failures with the same context as the lexer itself.
func (l *Lexer) Errorf(format string, args ...any) *Error {
	return l.errorf(format, args...)
}

func (l *Lexer) errorf(format string, args ...any) *Error {
	start := strings.LastIndexByte(l.src[:l.offset], '\n') + 1
	end := strings.IndexByte(l.src[l.offset:], '\n')
	if end < 0 {
		end = len(l.src)
	} else {
		end += l.offset
	}
	near := l.src[l.offset:]
	if len(near) > contextChars {
		near = near[:contextChars]
	}
	return &Error{
		Pos:     l.Position(),
		Message: fmt.Sprintf(format, args...),
		Line:    l.src[start:end],
		Near:    near,
	}
}
