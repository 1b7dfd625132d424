package compiler

import (
	"github.com/shopspring/decimal"

	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// compileUnary implements spec §4.4 "Unary": `+`/`-` require exactly one
// numeric operand, else the result is empty; `not` complements a single
// boolean, passes an empty operand through as empty, and fails on more than
// one element.
func compileUnary(n *ast.Unary) (CompiledNode, *diagnostics.Error) {
	operand, err := Compile(n.Operand)
	if err != nil {
		return nil, err
	}
	op := n.Op
	r := toRange(n.R)

	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		res, err := operand(focus, root, ctx)
		if err != nil {
			return nil, err
		}

		if op == ast.UnaryNot {
			if len(res) == 0 {
				return value.Seq{}, nil
			}
			if len(res) > 1 {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrNotBoolean,
					r, "not requires a single-element operand")
			}
			if res[0].Kind != value.Boolean {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrNotBoolean,
					r, "not requires a boolean operand")
			}
			return value.Seq{value.Bool(!res[0].Bool)}, nil
		}

		if len(res) != 1 || !res[0].IsNumeric() {
			return value.Seq{}, nil
		}
		v := res[0]
		if op == ast.UnaryPlus {
			return value.Seq{v}, nil
		}
		// UnaryMinus
		if v.Kind == value.Integer {
			return value.Seq{value.Int(-v.Int)}, nil
		}
		v.Dec = v.Dec.Neg()
		return value.Seq{v}, nil
	}, nil
}

// compileBinary dispatches each operator kind to its broadcasting rules
// (spec §4.4 "Binary operators").
func compileBinary(n *ast.Binary) (CompiledNode, *diagnostics.Error) {
	left, err := Compile(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := Compile(n.Right)
	if err != nil {
		return nil, err
	}
	r := toRange(n.R)

	switch n.Op {
	case ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpImplies:
		return compileLogic(n.Op, left, right), nil
	case ast.OpEq, ast.OpNeq, ast.OpEquiv, ast.OpNEquiv:
		return compileEquality(n.Op, left, right, r), nil
	case ast.OpLt, ast.OpGt, ast.OpLte, ast.OpGte:
		return compileOrdering(n.Op, left, right, r), nil
	case ast.OpUnion:
		return compileUnion(left, right), nil
	case ast.OpIn, ast.OpContains:
		return compileInContains(n.Op, left, right), nil
	case ast.OpConcat:
		return compileConcat(left, right), nil
	default:
		return compileArith(n.Op, left, right, r), nil
	}
}

// --- three-valued logic (and/or/xor/implies), short-circuiting where the
// spec requires it ---

func compileLogic(op ast.BinaryOp, left, right CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		lb, lok := singleBool(lv)

		switch op {
		case ast.OpAnd:
			if lok && !lb {
				return value.Seq{value.Bool(false)}, nil
			}
			rv, rerr := right(focus, root, ctx)
			if rerr != nil {
				return nil, rerr
			}
			rb, rok := singleBool(rv)
			if rok && !rb {
				return value.Seq{value.Bool(false)}, nil
			}
			if lok && rok {
				return value.Seq{value.Bool(true)}, nil
			}
			return value.Seq{}, nil
		case ast.OpOr:
			if lok && lb {
				return value.Seq{value.Bool(true)}, nil
			}
			rv, rerr := right(focus, root, ctx)
			if rerr != nil {
				return nil, rerr
			}
			rb, rok := singleBool(rv)
			if rok && rb {
				return value.Seq{value.Bool(true)}, nil
			}
			if lok && rok {
				return value.Seq{value.Bool(false)}, nil
			}
			return value.Seq{}, nil
		case ast.OpImplies:
			if lok && !lb {
				return value.Seq{value.Bool(true)}, nil
			}
			rv, rerr := right(focus, root, ctx)
			if rerr != nil {
				return nil, rerr
			}
			rb, rok := singleBool(rv)
			if rok && rb {
				return value.Seq{value.Bool(true)}, nil
			}
			if lok && rok {
				return value.Seq{value.Bool(false)}, nil
			}
			return value.Seq{}, nil
		default: // xor: no short circuit, empty propagates
			rv, rerr := right(focus, root, ctx)
			if rerr != nil {
				return nil, rerr
			}
			rb, rok := singleBool(rv)
			if !lok || !rok {
				return value.Seq{}, nil
			}
			return value.Seq{value.Bool(lb != rb)}, nil
		}
	}
}

func singleBool(seq value.Seq) (bool, bool) {
	if len(seq) != 1 || seq[0].Kind != value.Boolean {
		return false, false
	}
	return seq[0].Bool, true
}

// --- equality / equivalence ---

func compileEquality(op ast.BinaryOp, left, right CompiledNode, r diagnostics.Range) CompiledNode {
	strict := op == ast.OpEq || op == ast.OpNeq
	negate := op == ast.OpNeq || op == ast.OpNEquiv

	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		rv, rerr := right(focus, root, ctx)
		if rerr != nil {
			return nil, rerr
		}

		if len(lv) == 0 && len(rv) == 0 {
			return value.Seq{value.Bool(!negate)}, nil
		}
		if len(lv) == 0 || len(rv) == 0 {
			return value.Seq{}, nil
		}
		if len(lv) == 1 && len(rv) == 1 {
			eq, err := scalarEqual(lv[0], rv[0], strict, r)
			if err != nil {
				return nil, err
			}
			return value.Seq{value.Bool(eq != negate)}, nil
		}
		if len(lv) == 1 || len(rv) == 1 {
			singleton, many := lv[0], rv
			singletonFirst := true
			if len(lv) != 1 {
				singleton, many = rv[0], lv
				singletonFirst = false
			}
			out := make(value.Seq, 0, len(many))
			for _, item := range many {
				var eq bool
				var err *diagnostics.Error
				if singletonFirst {
					eq, err = scalarEqual(singleton, item, strict, r)
				} else {
					eq, err = scalarEqual(item, singleton, strict, r)
				}
				if err != nil {
					return nil, err
				}
				out = append(out, value.Bool(eq != negate))
			}
			return out, nil
		}
		// many vs many
		return value.Seq{value.Bool(negate)}, nil
	}
}

// scalarEqual compares two single values. strict=true is `=`/`!=` and fails
// on an outright type mismatch; strict=false is `~`/`!~` and treats a type
// mismatch as simply unequal.
func scalarEqual(a, b value.Value, strict bool, r diagnostics.Range) (bool, *diagnostics.Error) {
	if a.IsTemporal() && b.IsTemporal() {
		cmp, ok := temporalCompare(a.Str, b.Str)
		if !ok {
			if strict {
				return false, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
					r, "malformed temporal value")
			}
			return false, nil
		}
		return cmp == 0, nil
	}
	if a.Kind != b.Kind && !(a.IsNumeric() && b.IsNumeric()) {
		if strict {
			return false, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
				r, "cannot compare values of different types")
		}
		return false, nil
	}
	return value.Equal(a, b), nil
}

// --- ordering (< > <= >=) ---

func compileOrdering(op ast.BinaryOp, left, right CompiledNode, r diagnostics.Range) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		rv, rerr := right(focus, root, ctx)
		if rerr != nil {
			return nil, rerr
		}
		if len(lv) == 0 || len(rv) == 0 {
			return value.Seq{}, nil
		}
		if len(lv) == 1 && len(rv) == 1 {
			b, err := applyOrder(op, lv[0], rv[0], r)
			if err != nil {
				return nil, err
			}
			return value.Seq{value.Bool(b)}, nil
		}
		if len(lv) == 1 {
			out := make(value.Seq, 0, len(rv))
			for _, item := range rv {
				b, err := applyOrder(op, lv[0], item, r)
				if err != nil {
					return nil, err
				}
				out = append(out, value.Bool(b))
			}
			return out, nil
		}
		if len(rv) == 1 {
			out := make(value.Seq, 0, len(lv))
			for _, item := range lv {
				b, err := applyOrder(op, item, rv[0], r)
				if err != nil {
					return nil, err
				}
				out = append(out, value.Bool(b))
			}
			return out, nil
		}
		return value.Seq{}, nil
	}
}

func applyOrder(op ast.BinaryOp, a, b value.Value, r diagnostics.Range) (bool, *diagnostics.Error) {
	cmp, err := orderCompare(a, b, r)
	if err != nil {
		return false, err
	}
	switch op {
	case ast.OpLt:
		return cmp < 0, nil
	case ast.OpGt:
		return cmp > 0, nil
	case ast.OpLte:
		return cmp <= 0, nil
	default: // OpGte
		return cmp >= 0, nil
	}
}

func orderCompare(a, b value.Value, r diagnostics.Range) (int, *diagnostics.Error) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		ad, _ := a.AsDecimal()
		bd, _ := b.AsDecimal()
		return ad.Cmp(bd), nil
	case a.Kind == value.String && b.Kind == value.String:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		default:
			return 0, nil
		}
	case a.IsTemporal() && b.IsTemporal():
		cmp, ok := temporalCompare(a.Str, b.Str)
		if !ok {
			return 0, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
				r, "malformed temporal value")
		}
		return cmp, nil
	default:
		return 0, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
			r, "cannot order values of different types")
	}
}

// --- union, in/contains ---

func compileUnion(left, right CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		rv, rerr := right(focus, root, ctx)
		if rerr != nil {
			return nil, rerr
		}
		combined := make(value.Seq, 0, len(lv)+len(rv))
		combined = append(combined, lv...)
		combined = append(combined, rv...)
		return value.Distinct(combined), nil
	}
}

func compileInContains(op ast.BinaryOp, left, right CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		rv, rerr := right(focus, root, ctx)
		if rerr != nil {
			return nil, rerr
		}
		elems, collection := lv, rv
		if op == ast.OpContains {
			elems, collection = rv, lv
		}
		if len(elems) == 0 || len(collection) == 0 {
			return value.Seq{}, nil
		}
		for _, e := range elems {
			found := false
			for _, c := range collection {
				if value.Equal(e, c) {
					found = true
					break
				}
			}
			if !found {
				return value.Seq{value.Bool(false)}, nil
			}
		}
		return value.Seq{value.Bool(true)}, nil
	}
}

// --- string concatenation via `&`: empty operands behave as "" ---

func compileConcat(left, right CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		rv, rerr := right(focus, root, ctx)
		if rerr != nil {
			return nil, rerr
		}
		if len(lv) > 1 || len(rv) > 1 {
			return value.Seq{}, nil
		}
		ls, rs := "", ""
		if len(lv) == 1 {
			ls = lv[0].ToDisplayString()
		}
		if len(rv) == 1 {
			rs = rv[0].ToDisplayString()
		}
		return value.Seq{value.Str(ls + rs)}, nil
	}
}

// --- arithmetic: + - * / div mod ---

func compileArith(op ast.BinaryOp, left, right CompiledNode, r diagnostics.Range) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		lv, lerr := left(focus, root, ctx)
		if lerr != nil {
			return nil, lerr
		}
		rv, rerr := right(focus, root, ctx)
		if rerr != nil {
			return nil, rerr
		}
		if len(lv) != 1 || len(rv) != 1 {
			return value.Seq{}, nil
		}
		a, b := lv[0], rv[0]

		if op == ast.OpAdd && (a.Kind == value.String || b.Kind == value.String) {
			return value.Seq{value.Str(a.ToDisplayString() + b.ToDisplayString())}, nil
		}
		if op == ast.OpSub && a.IsTemporal() && b.IsTemporal() {
			days, ok := daysBetween(a.Str, b.Str)
			if !ok {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
					r, "malformed temporal value in subtraction")
			}
			return value.Seq{value.Qty(decimal.NewFromInt(days), "days")}, nil
		}
		if !a.IsNumeric() || !b.IsNumeric() {
			return value.Seq{}, nil
		}
		ad, _ := a.AsDecimal()
		bd, _ := b.AsDecimal()
		bothInt := a.Kind == value.Integer && b.Kind == value.Integer

		switch op {
		case ast.OpAdd:
			if bothInt {
				return value.Seq{value.Int(a.Int + b.Int)}, nil
			}
			return value.Seq{value.Dec(ad.Add(bd))}, nil
		case ast.OpSub:
			if bothInt {
				return value.Seq{value.Int(a.Int - b.Int)}, nil
			}
			return value.Seq{value.Dec(ad.Sub(bd))}, nil
		case ast.OpMul:
			if bothInt {
				return value.Seq{value.Int(a.Int * b.Int)}, nil
			}
			return value.Seq{value.Dec(ad.Mul(bd))}, nil
		case ast.OpDiv:
			if bd.IsZero() {
				return value.Seq{}, nil
			}
			return value.Seq{value.Dec(ad.DivRound(bd, 16))}, nil
		case ast.OpDivInt:
			if bd.IsZero() {
				return value.Seq{}, nil
			}
			q := ad.Div(bd).Floor()
			i := q.IntPart()
			return value.Seq{value.Int(i)}, nil
		case ast.OpMod:
			if bd.IsZero() {
				return value.Seq{}, nil
			}
			m := ad.Mod(bd)
			if bothInt {
				return value.Seq{value.Int(m.IntPart())}, nil
			}
			return value.Seq{value.Dec(m)}, nil
		default:
			return value.Seq{}, nil
		}
	}
}
