package lexer

import (
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/token"
)

// TokenStream is the contract the parser consumes: one token at a time,
// with bounded peeking. Mirrors the teacher's pipeline.TokenStream
// interface, narrowed to what the parser's single-token-of-lookahead
// Pratt loop actually needs.
type TokenStream interface {
	Next() (token.Token, *diagnostics.Error)
	Peek() (token.Token, *diagnostics.Error)
}

// Stream adapts a Lexer into a TokenStream with one token of pushback,
// held in a single peeked-token slot rather than a ring buffer — the
// grammar never needs more than one token of peek.
type Stream struct {
	lex        *Lexer
	peeked     *token.Token
	peekErr    *diagnostics.Error
	hasPeeked  bool
}

// NewStream wraps a fresh Lexer over input.
func NewStream(input string) *Stream {
	return &Stream{lex: New(input)}
}

// Next consumes and returns the next token.
func (s *Stream) Next() (token.Token, *diagnostics.Error) {
	if s.hasPeeked {
		s.hasPeeked = false
		tok, err := *s.peeked, s.peekErr
		s.peeked, s.peekErr = nil, nil
		return tok, err
	}
	return s.lex.NextToken()
}

// Peek returns the next token without consuming it.
func (s *Stream) Peek() (token.Token, *diagnostics.Error) {
	if !s.hasPeeked {
		tok, err := s.lex.NextToken()
		s.peeked = &tok
		s.peekErr = err
		s.hasPeeked = true
	}
	return *s.peeked, s.peekErr
}
