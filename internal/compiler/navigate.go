package compiler

import (
	"unicode"

	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// compileIdentifier implements spec §4.4 "Identifier": a type-filter check
// against resourceType when the focus is a singleton object whose name
// looks like a type name, otherwise property navigation with a fallback
// lookup against the root document when navigation on the focus yields
// nothing.
func compileIdentifier(n *ast.Identifier) (CompiledNode, *diagnostics.Error) {
	name := n.Name
	looksLikeType := len(name) > 0 && unicode.IsUpper(rune(name[0]))

	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		if looksLikeType && len(focus) == 1 && focus[0].Kind == value.Object {
			if rt, ok := focus[0].Obj["resourceType"]; ok {
				if rt.Kind == value.String {
					if rt.Str == name {
						return focus, nil
					}
					return value.Seq{}, nil
				}
			}
		}

		out := navigateProperty(focus, name)
		if len(out) == 0 && len(focus) == 1 && focus[0].Kind == value.Object {
			out = navigateProperty(value.Seq{root}, name)
		}
		return out, nil
	}, nil
}

// navigateProperty flat-maps items over item[name]: objects contribute the
// field's value (arrays spread, scalars wrap to one element), non-objects
// and missing keys contribute nothing (spec §3 invariant 2).
func navigateProperty(items value.Seq, name string) value.Seq {
	var out value.Seq
	for _, item := range items {
		if item.Kind != value.Object {
			continue
		}
		v, ok := item.Obj[name]
		if !ok {
			continue
		}
		if v.Kind == value.List {
			out = append(out, v.Elems...)
		} else {
			out = append(out, v)
		}
	}
	return out
}

func compileVariable(n *ast.Variable) (CompiledNode, *diagnostics.Error) {
	switch n.Name {
	case ast.VarThis:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			return focus, nil
		}, nil
	case ast.VarIndex:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			if v, ok := ctx.Index(); ok {
				return value.Seq{v}, nil
			}
			return value.Seq{}, nil
		}, nil
	case ast.VarTotal:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			if v, ok := ctx.Total(); ok {
				return value.Seq{v}, nil
			}
			return value.Seq{}, nil
		}, nil
	default:
		name := n.Name
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			if v, ok := ctx.Variable(name); ok {
				return value.Seq{v}, nil
			}
			return value.Seq{}, nil
		}, nil
	}
}

// compileEnvVariable implements spec §4.4 "Environment variable": `resource`
// returns the root document, `context` returns the current focus, `now`
// memoizes a wall-clock instant shared with the now() function, and all
// other names look up the context's variable mapping (the data model in
// spec §3 names a single variable map; this implementation resolves the
// ambiguity between "variable mapping" and "environment mapping" in §4.4
// by treating environment variables as reads of that same map).
func compileEnvVariable(n *ast.EnvVariable) (CompiledNode, *diagnostics.Error) {
	switch n.Name {
	case ast.EnvResource:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			return value.Seq{root}, nil
		}, nil
	case ast.EnvContext:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			return focus, nil
		}, nil
	case ast.EnvNow:
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			return value.Seq{ctx.Now()}, nil
		}, nil
	default:
		name := n.Name
		return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
			if v, ok := ctx.Variable(name); ok {
				return value.Seq{v}, nil
			}
			return value.Seq{}, nil
		}, nil
	}
}

func compileDot(n *ast.Dot) (CompiledNode, *diagnostics.Error) {
	left, err := Compile(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := Compile(n.Right)
	if err != nil {
		return nil, err
	}
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		newFocus, err := left(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		return right(newFocus, root, ctx)
	}, nil
}

func compileAs(n *ast.As) (CompiledNode, *diagnostics.Error) {
	expr, err := Compile(n.Expr)
	if err != nil {
		return nil, err
	}
	// `as` is an identity coercion at evaluation time; narrowing is left to
	// callers (spec §4.4 "as, is").
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		return expr(focus, root, ctx)
	}, nil
}

func compileIs(n *ast.Is) (CompiledNode, *diagnostics.Error) {
	expr, err := Compile(n.Expr)
	if err != nil {
		return nil, err
	}
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		res, err := expr(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		return value.Seq{value.Bool(len(res) > 0)}, nil
	}, nil
}

func compileIndexer(n *ast.Indexer) (CompiledNode, *diagnostics.Error) {
	expr, err := Compile(n.Expr)
	if err != nil {
		return nil, err
	}
	idx, err := Compile(n.Index)
	if err != nil {
		return nil, err
	}
	return func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error) {
		items, err := expr(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		idxSeq, err := idx(focus, root, ctx)
		if err != nil {
			return nil, err
		}
		if len(idxSeq) == 1 && idxSeq[0].Kind == value.Integer {
			i := idxSeq[0].Int
			if i < 0 || i >= int64(len(items)) {
				return value.Seq{}, nil
			}
			return value.Seq{items[i]}, nil
		}
		// Filter mode: evaluate the index expression once per element with
		// that element as focus, keeping elements where it yields [true].
		var out value.Seq
		for _, item := range items {
			res, err := idx(value.Seq{item}, root, ctx)
			if err != nil {
				return nil, err
			}
			if len(res) == 1 && res[0].Kind == value.Boolean && res[0].Bool {
				out = append(out, item)
			}
		}
		return out, nil
	}, nil
}
