package compiler

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/config"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// compileFunction implements spec §4.4's built-in function set plus the
// unknown-name fallback to a context-registered custom function. Arity is
// validated against config.Builtins at compile time; an unrecognized name is
// not a compile error (it might be a custom function registered later on
// the Context) but raises ErrUnknownFunction if the Context has no matching
// entry at evaluation time (spec §9 resolved open question).
func compileFunction(n *ast.Function) (CompiledNode, *diagnostics.Error) {
	r := toRange(n.R)
	sig, known := config.Builtins[n.Name]
	if known {
		if len(n.Args) < sig.MinArity || (sig.MaxArity >= 0 && len(n.Args) > sig.MaxArity) {
			return nil, diagnostics.AtRangef(diagnostics.PhaseCompiler, diagnostics.ErrArity,
				r, "%s expects between %d and %d arguments, got %d", n.Name, sig.MinArity, sig.MaxArity, len(n.Args))
		}
	}

	args := make([]CompiledNode, len(n.Args))
	for i, a := range n.Args {
		c, err := Compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = c
	}

	if !known {
		name := n.Name
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			fn, ok := ctx.Function(name)
			if !ok {
				return nil, diagnostics.AtRangef(diagnostics.PhaseRuntime, diagnostics.ErrUnknownFunction,
					r, "unknown function %q", name)
			}
			evaluated := make([]value.Seq, len(args))
			for i, a := range args {
				av, err := a(focus, root, ctx)
				if err != nil {
					return nil, err
				}
				evaluated[i] = av
			}
			return fn(focus, root, ctx, evaluated)
		}, nil
	}

	return compileBuiltin(n.Name, args, r), nil
}

func compileBuiltin(name string, args []CompiledNode, r diagnostics.Range) CompiledNode {
	switch name {
	case "where":
		return compileWhereLike(args[0], r, false)
	case "select":
		return compileSelect(args[0])
	case "all":
		return compileWhereLike(args[0], r, true)
	case "any":
		return compileAny(args[0])
	case "exists":
		if len(args) == 0 {
			return compileExistsNoArg()
		}
		return compileExists(args[0])
	case "empty":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			return value.Seq{value.Bool(len(focus) == 0)}, nil
		})
	case "count":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			return value.Seq{value.Int(int64(len(focus)))}, nil
		})
	case "first":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) == 0 {
				return value.Seq{}, nil
			}
			return value.Seq{focus[0]}, nil
		})
	case "last":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) == 0 {
				return value.Seq{}, nil
			}
			return value.Seq{focus[len(focus)-1]}, nil
		})
	case "tail":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) <= 1 {
				return value.Seq{}, nil
			}
			return append(value.Seq{}, focus[1:]...), nil
		})
	case "skip":
		return compileSkip(args[0])
	case "take":
		return compileTake(args[0])
	case "distinct":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			return value.Distinct(focus), nil
		})
	case "length":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			s, ok := singleString(focus)
			if !ok {
				return value.Seq{}, nil
			}
			return value.Seq{value.Int(int64(len([]rune(s))))}, nil
		})
	case "startsWith":
		return compileStringBinary(args[0], strings.HasPrefix)
	case "endsWith":
		return compileStringBinary(args[0], strings.HasSuffix)
	case "contains":
		return compileStringBinary(args[0], strings.Contains)
	case "substring":
		return compileSubstring(args)
	case "upper":
		return fnStringMap(strings.ToUpper)
	case "lower":
		return fnStringMap(strings.ToLower)
	case "trim":
		return fnStringMap(strings.TrimSpace)
	case "replace":
		return compileReplace(args)
	case "split":
		return compileSplit(args[0])
	case "join":
		return compileJoin(args)
	case "sum":
		return compileSum(r)
	case "min":
		return compileMinMax(true, r)
	case "max":
		return compileMinMax(false, r)
	case "avg":
		return compileAvg()
	case "abs":
		return compileUnaryNumeric(func(d decimal.Decimal) decimal.Decimal { return d.Abs() })
	case "ceiling":
		return compileUnaryNumeric(func(d decimal.Decimal) decimal.Decimal { return d.Ceil() })
	case "floor":
		return compileUnaryNumeric(func(d decimal.Decimal) decimal.Decimal { return d.Floor() })
	case "round":
		return compileRound(args)
	case "sqrt":
		return compileSqrt(r)
	case "div":
		return compileFnDivMod(args[0], ast.OpDivInt, r)
	case "mod":
		return compileFnDivMod(args[0], ast.OpMod, r)
	case "toString":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) != 1 {
				return value.Seq{}, nil
			}
			return value.Seq{value.Str(focus[0].ToDisplayString())}, nil
		})
	case "toInteger":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			return toIntegerSeq(focus), nil
		})
	case "toDecimal":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			return toDecimalSeq(focus), nil
		})
	case "toDateTime":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) != 1 || focus[0].Kind != value.String {
				return value.Seq{}, nil
			}
			return value.Seq{value.DateTimeVal(focus[0].Str)}, nil
		})
	case "now":
		return fnCtx(func(focus value.Seq, ctx Context) value.Seq { return value.Seq{ctx.Now()} })
	case "today":
		return fnCtx(func(focus value.Seq, ctx Context) value.Seq { return value.Seq{ctx.Today()} })
	case "timeOfDay":
		return fnCtx(func(focus value.Seq, ctx Context) value.Seq { return value.Seq{ctx.TimeOfDay()} })
	case "not":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) == 0 {
				return value.Seq{}, nil
			}
			if len(focus) > 1 {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrNotBoolean,
					r, "not requires a single-element operand")
			}
			b, ok := singleBool(focus)
			if !ok {
				return value.Seq{}, nil
			}
			return value.Seq{value.Bool(!b)}, nil
		})
	case "iif":
		return compileIif(args)
	case "type":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			out := make(value.Seq, len(focus))
			for i, v := range focus {
				out[i] = value.NewObject(map[string]value.Value{"name": value.Str(v.TypeName())}, []string{"name"})
			}
			return out, nil
		})
	case "value":
		return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
			if len(focus) == 1 && focus[0].Kind == value.Quantity {
				return value.Seq{value.Dec(focus[0].Dec)}, nil
			}
			return focus, nil
		})
	default:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			return nil, diagnostics.AtRangef(diagnostics.PhaseRuntime, diagnostics.ErrUnknownFunction,
				r, "unknown function %q", name)
		}
	}
}

// fnSimple wraps a focus-only transform that ignores root/ctx.
func fnSimple(f func(focus value.Seq) (value.Seq, *diagnostics.Error)) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		return f(focus)
	}
}

func fnCtx(f func(focus value.Seq, ctx Context) value.Seq) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		return f(focus, ctx), nil
	}
}

func singleString(seq value.Seq) (string, bool) {
	if len(seq) != 1 || seq[0].Kind != value.String {
		return "", false
	}
	return seq[0].Str, true
}

// --- iteration combinators: predicate/projection run once per element with
// $this bound to the element and $index bound to its position ---

func compileWhereLike(pred CompiledNode, r diagnostics.Range, isAll bool) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		var kept value.Seq
		for i, item := range focus {
			ictx := WithIndex(ctx, i)
			res, err := pred(value.Seq{item}, root, ictx)
			if err != nil {
				return nil, err
			}
			ok := len(res) == 1 && res[0].Kind == value.Boolean && res[0].Bool
			if isAll {
				if !ok {
					return value.Seq{value.Bool(false)}, nil
				}
				continue
			}
			if ok {
				kept = append(kept, item)
			}
		}
		if isAll {
			return value.Seq{value.Bool(true)}, nil
		}
		return kept, nil
	}
}

func compileAny(pred CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		for i, item := range focus {
			ictx := WithIndex(ctx, i)
			res, err := pred(value.Seq{item}, root, ictx)
			if err != nil {
				return nil, err
			}
			if len(res) == 1 && res[0].Kind == value.Boolean && res[0].Bool {
				return value.Seq{value.Bool(true)}, nil
			}
		}
		return value.Seq{value.Bool(false)}, nil
	}
}

func compileSelect(proj CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		var out value.Seq
		for i, item := range focus {
			ictx := WithIndex(ctx, i)
			res, err := proj(value.Seq{item}, root, ictx)
			if err != nil {
				return nil, err
			}
			out = append(out, res...)
		}
		return out, nil
	}
}

func compileExistsNoArg() CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		return value.Seq{value.Bool(len(focus) > 0)}, nil
	}
}

func compileExists(pred CompiledNode) CompiledNode {
	return compileAny(pred)
}

// --- skip/take ---

func compileSkip(nArg CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		n, err := singleInt(nArg, focus, root, ctx)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n = 0
		}
		if int(n) >= len(focus) {
			return value.Seq{}, nil
		}
		return append(value.Seq{}, focus[n:]...), nil
	}
}

func compileTake(nArg CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		n, err := singleInt(nArg, focus, root, ctx)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return value.Seq{}, nil
		}
		if int(n) >= len(focus) {
			return append(value.Seq{}, focus...), nil
		}
		return append(value.Seq{}, focus[:n]...), nil
	}
}

func singleInt(arg CompiledNode, focus value.Seq, root value.Value, ctx Context) (int64, *diagnostics.Error) {
	res, err := arg(focus, root, ctx)
	if err != nil {
		return 0, err
	}
	if len(res) != 1 || res[0].Kind != value.Integer {
		return 0, nil
	}
	return res[0].Int, nil
}

// --- string functions ---

func compileStringBinary(arg CompiledNode, f func(s, sub string) bool) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		s, ok := singleString(focus)
		if !ok {
			return value.Seq{}, nil
		}
		av, err := arg(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		sub, ok := singleString(av)
		if !ok {
			return value.Seq{}, nil
		}
		return value.Seq{value.Bool(f(s, sub))}, nil
	}
}

func fnStringMap(f func(string) string) CompiledNode {
	return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
		s, ok := singleString(focus)
		if !ok {
			return value.Seq{}, nil
		}
		return value.Seq{value.Str(f(s))}, nil
	})
}

func compileSubstring(args []CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		s, ok := singleString(focus)
		if !ok {
			return value.Seq{}, nil
		}
		runes := []rune(s)
		start, err := singleInt(args[0], focus, root, ctx)
		if err != nil {
			return nil, err
		}
		if start < 0 || int(start) > len(runes) {
			return value.Seq{}, nil
		}
		end := int64(len(runes))
		if len(args) == 2 {
			l, err := singleInt(args[1], focus, root, ctx)
			if err != nil {
				return nil, err
			}
			if start+l < end {
				end = start + l
			}
		}
		return value.Seq{value.Str(string(runes[start:end]))}, nil
	}
}

func compileReplace(args []CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		s, ok := singleString(focus)
		if !ok {
			return value.Seq{}, nil
		}
		pv, err := args[0](focus, root, ctx)
		if err != nil {
			return nil, err
		}
		rv, err := args[1](focus, root, ctx)
		if err != nil {
			return nil, err
		}
		pattern, ok := singleString(pv)
		if !ok {
			return value.Seq{}, nil
		}
		repl, ok := singleString(rv)
		if !ok {
			return value.Seq{}, nil
		}
		return value.Seq{value.Str(strings.ReplaceAll(s, pattern, repl))}, nil
	}
}

func compileSplit(sepArg CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		s, ok := singleString(focus)
		if !ok {
			return value.Seq{}, nil
		}
		sv, err := sepArg(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		sep, ok := singleString(sv)
		if !ok {
			return value.Seq{}, nil
		}
		parts := strings.Split(s, sep)
		out := make(value.Seq, len(parts))
		for i, p := range parts {
			out[i] = value.Str(p)
		}
		return out, nil
	}
}

func compileJoin(args []CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		sep := ""
		if len(args) == 1 {
			sv, err := args[0](focus, root, ctx)
			if err != nil {
				return nil, err
			}
			if s, ok := singleString(sv); ok {
				sep = s
			}
		}
		parts := make([]string, 0, len(focus))
		for _, v := range focus {
			parts = append(parts, v.ToDisplayString())
		}
		return value.Seq{value.Str(strings.Join(parts, sep))}, nil
	}
}

// --- numeric aggregates ---

// compileSum returns 0 on an empty focus and fails on a non-numeric element
// (spec §4.4 "sum").
func compileSum(r diagnostics.Range) CompiledNode {
	return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
		acc := decimal.Zero
		allInt := true
		for _, v := range focus {
			if !v.IsNumeric() {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrNotNumeric,
					r, "sum requires numeric elements")
			}
			if v.Kind != value.Integer {
				allInt = false
			}
			d, _ := v.AsDecimal()
			acc = acc.Add(d)
		}
		if allInt {
			return value.Seq{value.Int(acc.IntPart())}, nil
		}
		return value.Seq{value.Dec(acc)}, nil
	})
}

// compileMinMax uses numeric `<` for numeric elements and the temporal-order
// predicate for temporal elements (spec §4.4 "min/max"); mixing the two
// kinds within one focus fails.
func compileMinMax(wantMin bool, r diagnostics.Range) CompiledNode {
	return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
		var best value.Value
		found := false
		for _, v := range focus {
			if !v.IsNumeric() && !v.IsTemporal() {
				continue
			}
			if !found {
				best, found = v, true
				continue
			}
			if best.IsNumeric() != v.IsNumeric() {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
					r, "min/max requires homogeneous numeric or temporal elements")
			}
			var cmp int
			if v.IsNumeric() {
				bd, _ := best.AsDecimal()
				vd, _ := v.AsDecimal()
				cmp = vd.Cmp(bd)
			} else {
				c, ok := temporalCompare(v.Str, best.Str)
				if !ok {
					return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrIncomparableTypes,
						r, "malformed temporal value")
				}
				cmp = c
			}
			if (wantMin && cmp < 0) || (!wantMin && cmp > 0) {
				best = v
			}
		}
		if !found {
			return value.Seq{}, nil
		}
		return value.Seq{best}, nil
	})
}

func compileAvg() CompiledNode {
	return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
		sum := decimal.Zero
		count := 0
		for _, v := range focus {
			if !v.IsNumeric() {
				continue
			}
			d, _ := v.AsDecimal()
			sum = sum.Add(d)
			count++
		}
		if count == 0 {
			return value.Seq{}, nil
		}
		return value.Seq{value.Dec(sum.DivRound(decimal.NewFromInt(int64(count)), 16))}, nil
	})
}

func compileUnaryNumeric(f func(decimal.Decimal) decimal.Decimal) CompiledNode {
	return fnSimple(func(focus value.Seq) (value.Seq, *diagnostics.Error) {
		if len(focus) != 1 || !focus[0].IsNumeric() {
			return value.Seq{}, nil
		}
		d, _ := focus[0].AsDecimal()
		res := f(d)
		if focus[0].Kind == value.Integer && res.Equal(res.Truncate(0)) {
			return value.Seq{value.Int(res.IntPart())}, nil
		}
		return value.Seq{value.Dec(res)}, nil
	})
}

func compileRound(args []CompiledNode) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		if len(focus) != 1 || !focus[0].IsNumeric() {
			return value.Seq{}, nil
		}
		prec := int32(0)
		if len(args) == 1 {
			p, err := singleInt(args[0], focus, root, ctx)
			if err != nil {
				return nil, err
			}
			prec = int32(p)
		}
		d, _ := focus[0].AsDecimal()
		return value.Seq{value.Dec(d.Round(prec))}, nil
	}
}

// compileSqrt maps sqrt over every element of focus; a negative element is
// skipped rather than failing the whole call (spec §4.4 "sqrt: fails on a
// single negative; on a collection, errors from individual elements are
// skipped").
func compileSqrt(r diagnostics.Range) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		if len(focus) == 1 {
			if !focus[0].IsNumeric() {
				return value.Seq{}, nil
			}
			d, _ := focus[0].AsDecimal()
			if d.IsNegative() {
				return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrDomainSqrtNegative,
					r, "sqrt of a negative number")
			}
			f, _ := d.Float64()
			return value.Seq{value.Dec(decimal.NewFromFloat(sqrtFloat(f)))}, nil
		}
		var out value.Seq
		for _, v := range focus {
			if !v.IsNumeric() {
				continue
			}
			d, _ := v.AsDecimal()
			if d.IsNegative() {
				continue
			}
			f, _ := d.Float64()
			out = append(out, value.Dec(decimal.NewFromFloat(sqrtFloat(f))))
		}
		return out, nil
	}
}

func sqrtFloat(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 40; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// compileFnDivMod implements the div()/mod() function forms: unlike the
// operator forms, dividing by zero raises rather than yielding empty
// (spec §4.4 "the function forms (§6) raise").
func compileFnDivMod(arg CompiledNode, op ast.BinaryOp, r diagnostics.Range) CompiledNode {
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		if len(focus) != 1 || !focus[0].IsNumeric() {
			return value.Seq{}, nil
		}
		av, err := arg(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		if len(av) != 1 || !av[0].IsNumeric() {
			return value.Seq{}, nil
		}
		ad, _ := focus[0].AsDecimal()
		bd, _ := av[0].AsDecimal()
		if bd.IsZero() {
			return nil, diagnostics.AtRange(diagnostics.PhaseRuntime, diagnostics.ErrDomainDivByZero,
				r, "division by zero")
		}
		bothInt := focus[0].Kind == value.Integer && av[0].Kind == value.Integer
		if op == ast.OpDivInt {
			q := ad.Div(bd).Floor()
			return value.Seq{value.Int(q.IntPart())}, nil
		}
		m := ad.Mod(bd)
		if bothInt {
			return value.Seq{value.Int(m.IntPart())}, nil
		}
		return value.Seq{value.Dec(m)}, nil
	}
}

// --- conversions ---

func toIntegerSeq(focus value.Seq) value.Seq {
	if len(focus) != 1 {
		return value.Seq{}
	}
	v := focus[0]
	switch v.Kind {
	case value.Integer:
		return value.Seq{v}
	case value.Decimal:
		return value.Seq{value.Int(v.Dec.IntPart())}
	case value.String:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return value.Seq{}
		}
		return value.Seq{value.Int(i)}
	case value.Boolean:
		if v.Bool {
			return value.Seq{value.Int(1)}
		}
		return value.Seq{value.Int(0)}
	default:
		return value.Seq{}
	}
}

func toDecimalSeq(focus value.Seq) value.Seq {
	if len(focus) != 1 {
		return value.Seq{}
	}
	v := focus[0]
	switch v.Kind {
	case value.Decimal:
		return value.Seq{v}
	case value.Integer:
		return value.Seq{value.Dec(decimal.NewFromInt(v.Int))}
	case value.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.Str))
		if err != nil {
			return value.Seq{}
		}
		return value.Seq{value.Dec(d)}
	default:
		return value.Seq{}
	}
}

// --- iif ---

func compileIif(args []CompiledNode) CompiledNode {
	cond, thenBranch, elseBranch := args[0], args[1], args[2]
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		cv, err := cond(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := singleBool(cv)
		if ok && b {
			return thenBranch(focus, root, ctx)
		}
		return elseBranch(focus, root, ctx)
	}
}
