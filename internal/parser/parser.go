// Package parser implements the precedence-climbing (Pratt) parser that
// turns a token stream into an AST (spec §4.2, §4.3). The parser consumes
// one token of lookahead and records the previous token, in the teacher's
// style: parse functions selected by token kind, driven by a precedence
// map.
package parser

import (
	"strings"

	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/config"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/lexer"
	"github.com/atomic-ehr/fhirpath-go/internal/token"
)

// precedences maps an infix/postfix token kind to its binding power. Kinds
// absent from this map do not continue the Pratt loop (precedence 0).
var precedences = map[token.Kind]int{
	token.IMPLIES:  config.PrecImplies,
	token.OR:       config.PrecOrXor,
	token.XOR:      config.PrecOrXor,
	token.AND:      config.PrecAnd,
	token.EQ:       config.PrecEquality,
	token.NEQ:      config.PrecEquality,
	token.EQUIV:    config.PrecEquality,
	token.NEQUIV:   config.PrecEquality,
	token.IN:       config.PrecEquality,
	token.CONTAINS: config.PrecEquality,
	token.LT:       config.PrecInequality,
	token.GT:       config.PrecInequality,
	token.LTE:      config.PrecInequality,
	token.GTE:      config.PrecInequality,
	token.IS:       config.PrecInequality,
	token.PIPE:     config.PrecUnion,
	token.PLUS:     config.PrecAdditive,
	token.MINUS:    config.PrecAdditive,
	token.AMP:      config.PrecAdditive,
	token.STAR:     config.PrecMultiplicative,
	token.SLASH:    config.PrecMultiplicative,
	token.DIV:      config.PrecMultiplicative,
	token.MOD:      config.PrecMultiplicative,
	token.DOT:      config.PrecPostfix,
	token.LBRACKET: config.PrecPostfix,
	token.AS:       config.PrecPostfix,
}

var binaryOps = map[token.Kind]ast.BinaryOp{
	token.IMPLIES:  ast.OpImplies,
	token.OR:       ast.OpOr,
	token.XOR:      ast.OpXor,
	token.AND:      ast.OpAnd,
	token.EQ:       ast.OpEq,
	token.NEQ:      ast.OpNeq,
	token.EQUIV:    ast.OpEquiv,
	token.NEQUIV:   ast.OpNEquiv,
	token.IN:       ast.OpIn,
	token.CONTAINS: ast.OpContains,
	token.LT:       ast.OpLt,
	token.GT:       ast.OpGt,
	token.LTE:      ast.OpLte,
	token.GTE:      ast.OpGte,
	token.PIPE:     ast.OpUnion,
	token.PLUS:     ast.OpAdd,
	token.MINUS:    ast.OpSub,
	token.AMP:      ast.OpConcat,
	token.STAR:     ast.OpMul,
	token.SLASH:    ast.OpDiv,
	token.DIV:      ast.OpDivInt,
	token.MOD:      ast.OpMod,
}

// Parser consumes a lexer.TokenStream and produces an AST.
type Parser struct {
	stream *lexer.Stream
	source string
	cur    token.Token
	prev   token.Token
	err    *diagnostics.Error
}

// Parse is the entry point: spec §4.3 "parse(text) → AST".
func Parse(text string) (ast.Node, *diagnostics.Error) {
	p := &Parser{stream: lexer.NewStream(text), source: text}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == token.EOF {
		return nil, diagnostics.AtRange(diagnostics.PhaseParser, diagnostics.ErrEmptyExpression,
			diagnostics.Range{Line: 1, Column: 1}, "Empty expression").WithSource(text)
	}
	expr, err := p.parseExpression(config.PrecLowest)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.EOF {
		return nil, diagnostics.AtRangef(diagnostics.PhaseParser, diagnostics.ErrTrailingTokens,
			diagnostics.Range{Start: p.cur.Start, End: p.cur.End, Line: p.cur.Line, Column: p.cur.Column},
			"Unexpected %q at end of expression", p.cur.Value).WithSource(text)
	}
	return expr, nil
}

func (p *Parser) advance() *diagnostics.Error {
	p.prev = p.cur
	tok, err := p.stream.Next()
	if err != nil {
		return err.WithSource(p.source)
	}
	p.cur = tok
	return nil
}

// curPrecedence is the binding power of p.cur, the first token not yet
// consumed by the expression parsed so far.
func (p *Parser) curPrecedence() int {
	return precedences[p.cur.Kind]
}

func rangeOf(t token.Token) ast.Range {
	return ast.Range{Start: t.Start, End: t.End, Line: t.Line, Column: t.Column}
}

func diagRange(t token.Token) diagnostics.Range {
	return diagnostics.Range{Start: t.Start, End: t.End, Line: t.Line, Column: t.Column}
}

func span(start, end ast.Range) ast.Range {
	return ast.Range{Start: start.Start, End: end.End, Line: start.Line, Column: start.Column}
}

// parseExpression is the core Pratt loop.
func (p *Parser) parseExpression(precedence int) (ast.Node, *diagnostics.Error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for precedence < p.curPrecedence() {
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseInfix(left ast.Node) (ast.Node, *diagnostics.Error) {
	switch p.cur.Kind {
	case token.DOT:
		return p.parseDot(left)
	case token.LBRACKET:
		return p.parseIndexer(left)
	case token.AS:
		return p.parseAs(left)
	case token.IS:
		return p.parseIs(left)
	default:
		op, ok := binaryOps[p.cur.Kind]
		if !ok {
			return nil, p.unexpected()
		}
		return p.parseBinary(left, op)
	}
}

func (p *Parser) parseBinary(left ast.Node, op ast.BinaryOp) (ast.Node, *diagnostics.Error) {
	opTok := p.cur
	prec := precedences[opTok.Kind]
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}
	r := span(left.Range(), right.Range())
	return &ast.Binary{R: r, Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseDot(left ast.Node) (ast.Node, *diagnostics.Error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseDotRHS()
	if err != nil {
		return nil, err
	}
	r := span(left.Range(), right.Range())
	return &ast.Dot{R: r, Left: left, Right: right}, nil
}

// parseDotRHS implements the special post-dot grammar rule (spec §4.3):
// an identifier, a function-like keyword used as a name, a property
// keyword, or an environment variable.
func (p *Parser) parseDotRHS() (ast.Node, *diagnostics.Error) {
	tok := p.cur
	switch {
	case tok.Kind == token.IDENT || tok.Kind == token.FUNCNAME || tok.Kind == token.DELIMITEDIDENT ||
		isPropertyKeyword(tok.Kind):
		name := tok.Value
		if name == "" {
			name = string(tok.Kind)
		}
		startR := rangeOf(tok)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == token.LPAREN {
			return p.parseCallArgs(name, startR)
		}
		return &ast.Identifier{R: startR, Name: name}, nil
	case tok.Kind == token.ENVVAR:
		n := &ast.EnvVariable{R: rangeOf(tok), Name: tok.Value}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, p.unexpected()
	}
}

// isPropertyKeyword reports whether a keyword token may also appear as a
// property name immediately after a dot (spec §6: "any of these may also
// appear as a property name after a dot" — the full logical-connective and
// type-operator keyword set, not just the bare PropertyKeywords table, since
// a name like `x.not` or `x.is` must still resolve to a property/function
// name rather than the keyword's operator form).
func isPropertyKeyword(k token.Kind) bool {
	switch k {
	case token.AND, token.OR, token.IMPLIES, token.DIV, token.MOD, token.XOR, token.TRUEKW, token.FALSEKW,
		token.NOT, token.IN, token.CONTAINS, token.IS, token.AS:
		return true
	}
	return false
}

func (p *Parser) parseIndexer(left ast.Node) (ast.Node, *diagnostics.Error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	idx, err := p.parseExpression(config.PrecLowest)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.RBRACKET {
		return nil, p.expected(token.RBRACKET)
	}
	endR := rangeOf(p.cur)
	if err := p.advance(); err != nil {
		return nil, err
	}
	r := span(left.Range(), endR)
	return &ast.Indexer{R: r, Expr: left, Index: idx}, nil
}

func (p *Parser) parseAs(left ast.Node) (ast.Node, *diagnostics.Error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, endR, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	r := span(left.Range(), endR)
	return &ast.As{R: r, Expr: left, TypeName: name}, nil
}

func (p *Parser) parseIs(left ast.Node) (ast.Node, *diagnostics.Error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, endR, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	r := span(left.Range(), endR)
	return &ast.Is{R: r, Expr: left, TypeName: name}, nil
}

// parseQualifiedName parses A or A.B.C..., required after is/as.
func (p *Parser) parseQualifiedName() (string, ast.Range, *diagnostics.Error) {
	if p.cur.Kind != token.IDENT && p.cur.Kind != token.FUNCNAME {
		return "", ast.Range{}, diagnostics.AtRange(diagnostics.PhaseParser, diagnostics.ErrExpectedTypeName,
			diagRange(p.cur), "Expected a type name").WithSource(p.source)
	}
	var parts []string
	parts = append(parts, p.cur.Value)
	last := rangeOf(p.cur)
	if err := p.advance(); err != nil {
		return "", ast.Range{}, err
	}
	for p.cur.Kind == token.DOT {
		peek, perr := p.stream.Peek()
		if perr != nil {
			return "", ast.Range{}, perr
		}
		if peek.Kind != token.IDENT && peek.Kind != token.FUNCNAME {
			break
		}
		if err := p.advance(); err != nil { // consume dot
			return "", ast.Range{}, err
		}
		parts = append(parts, p.cur.Value)
		last = rangeOf(p.cur)
		if err := p.advance(); err != nil {
			return "", ast.Range{}, err
		}
	}
	return strings.Join(parts, "."), last, nil
}

func (p *Parser) parseCallArgs(name string, nameR ast.Range) (ast.Node, *diagnostics.Error) {
	// p.cur.Kind == LPAREN
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []ast.Node
	if p.cur.Kind != token.RPAREN {
		for {
			arg, err := p.parseExpression(config.PrecLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.Kind == token.COMMA {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if p.cur.Kind != token.RPAREN {
		return nil, p.expected(token.RPAREN)
	}
	endR := rangeOf(p.cur)
	if err := p.advance(); err != nil {
		return nil, err
	}
	r := span(nameR, endR)
	return &ast.Function{R: r, Name: name, Args: args}, nil
}

// parsePrimary handles the prefix position: literals, identifiers,
// variables, environment variables, parenthesized expressions, and unary
// operators.
func (p *Parser) parsePrimary() (ast.Node, *diagnostics.Error) {
	tok := p.cur
	switch tok.Kind {
	case token.NUMBER:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitNumber, Raw: tok.Value}, nil
	case token.LONGNUMBER:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitLong, Raw: tok.Value}, nil
	case token.QUANTITY:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitQuantity, Raw: tok.Value}, nil
	case token.STRING:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitString, Raw: tok.Value}, nil
	case token.TRUEKW, token.FALSEKW:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitBoolean, Raw: string(tok.Kind)}, nil
	case token.DATE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitDate, Raw: tok.Value}, nil
	case token.TIME:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitTime, Raw: tok.Value}, nil
	case token.DATETIME:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Literal{R: rangeOf(tok), Kind: ast.LitDateTime, Raw: tok.Value}, nil
	case token.NULLLIT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Null{R: rangeOf(tok)}, nil
	case token.VARIABLE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Variable{R: rangeOf(tok), Name: tok.Value}, nil
	case token.TOTALVAR:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Variable{R: rangeOf(tok), Name: ast.VarTotal}, nil
	case token.ENVVAR:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.EnvVariable{R: rangeOf(tok), Name: tok.Value}, nil
	case token.IDENT, token.FUNCNAME, token.DELIMITEDIDENT:
		name := tok.Value
		startR := rangeOf(tok)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == token.LPAREN {
			return p.parseCallArgs(name, startR)
		}
		return &ast.Identifier{R: startR, Name: name}, nil
	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpression(config.PrecLowest)
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != token.RPAREN {
			return nil, p.expected(token.RPAREN)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	case token.PLUS:
		return p.parseUnary(ast.UnaryPlus, tok)
	case token.MINUS:
		return p.parseUnary(ast.UnaryMinus, tok)
	case token.NOT:
		return p.parseUnary(ast.UnaryNot, tok)
	default:
		return nil, p.unexpected()
	}
}

func (p *Parser) parseUnary(op ast.UnaryOp, tok token.Token) (ast.Node, *diagnostics.Error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(config.PrecUnary)
	if err != nil {
		return nil, err
	}
	r := span(rangeOf(tok), operand.Range())
	return &ast.Unary{R: r, Op: op, Operand: operand}, nil
}

func (p *Parser) unexpected() *diagnostics.Error {
	return diagnostics.AtRangef(diagnostics.PhaseParser, diagnostics.ErrUnexpectedToken,
		diagRange(p.cur), "Unexpected %q", p.cur.Value).WithSource(p.source)
}

func (p *Parser) expected(kind token.Kind) *diagnostics.Error {
	return diagnostics.AtRangef(diagnostics.PhaseParser, diagnostics.ErrExpectedToken,
		diagRange(p.cur), "Expected %q but found %q", kind, p.cur.Value).WithSource(p.source)
}
