package compiler

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// compileLiteral parses a literal's raw lexeme into a value.Value at
// compile time; a quantity literal is parsed into {value, unit} here
// rather than at every evaluation (spec §4.4 "Literal").
func compileLiteral(n *ast.Literal) (CompiledNode, *diagnostics.Error) {
	v, err := literalValue(n)
	if err != nil {
		return nil, err
	}
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		return value.Seq{v}, nil
	}, nil
}

func literalValue(n *ast.Literal) (value.Value, *diagnostics.Error) {
	switch n.Kind {
	case ast.LitString:
		return value.Str(n.Raw), nil
	case ast.LitBoolean:
		return value.Bool(n.Raw == "true"), nil
	case ast.LitNumber:
		return parseNumericLiteral(n.Raw, toRange(n.R))
	case ast.LitLong:
		i, err := strconv.ParseInt(n.Raw, 10, 64)
		if err != nil {
			return value.Value{}, diagnostics.AtRangef(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
				toRange(n.R), "invalid long literal %q", n.Raw)
		}
		return value.Int(i), nil
	case ast.LitDate:
		return value.DateVal(n.Raw), nil
	case ast.LitTime:
		return value.TimeVal(n.Raw), nil
	case ast.LitDateTime:
		return value.DateTimeVal(n.Raw), nil
	case ast.LitQuantity:
		return parseQuantityLiteral(n.Raw, toRange(n.R))
	default:
		return value.Value{}, diagnostics.AtRange(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
			toRange(n.R), "unknown literal kind")
	}
}

func parseNumericLiteral(raw string, r diagnostics.Range) (value.Value, *diagnostics.Error) {
	if strings.Contains(raw, ".") {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return value.Value{}, diagnostics.AtRangef(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
				r, "invalid decimal literal %q", raw)
		}
		return value.Dec(d), nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return value.Value{}, diagnostics.AtRangef(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
			r, "invalid integer literal %q", raw)
	}
	return value.Int(i), nil
}

// parseQuantityLiteral splits a lexer-produced quantity lexeme ("5 'mg'" or
// "5 day") into its numeric magnitude and unit label.
func parseQuantityLiteral(raw string, r diagnostics.Range) (value.Value, *diagnostics.Error) {
	sp := strings.IndexByte(raw, ' ')
	if sp < 0 {
		return value.Value{}, diagnostics.AtRangef(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
			r, "malformed quantity literal %q", raw)
	}
	numPart, unitPart := raw[:sp], raw[sp+1:]
	d, err := decimal.NewFromString(numPart)
	if err != nil {
		return value.Value{}, diagnostics.AtRangef(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
			r, "invalid quantity magnitude %q", numPart)
	}
	unit := unitPart
	if len(unit) >= 2 && unit[0] == '\'' && unit[len(unit)-1] == '\'' {
		unit = unit[1 : len(unit)-1]
	}
	return value.Qty(d, unit), nil
}

func compileNull(n *ast.Null) (CompiledNode, *diagnostics.Error) {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		return value.Seq{}, nil
	}, nil
}
