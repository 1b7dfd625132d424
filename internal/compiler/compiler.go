// Package compiler walks an AST and emits a closure-per-node (spec §4.4):
// `compile(node) -> CompiledNode`, where a CompiledNode has signature
// `(focus, root, ctx) -> (values[], error)`. Leaves compile first; each
// parent closure references its already-compiled children. The result is
// pure in the data — the same CompiledNode may be invoked any number of
// times against any documents.
package compiler

import (
	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// CompiledNode is the executable image of an AST node.
type CompiledNode func(focus value.Seq, root value.Value, ctx Context) (value.Seq, *diagnostics.Error)

// UserFunc is the signature custom functions registered on a Context must
// implement (spec §4.4 "Unknown name: look up in the context's custom-
// function map and invoke with focus + evaluated argument values").
type UserFunc func(focus value.Seq, root value.Value, ctx Context, args []value.Seq) (value.Seq, *diagnostics.Error)

// Context is the narrow view of the evaluation context (spec §3) that
// compiled closures need: user variables, custom functions, and the
// temporal memoization slots. internal/evalctx.Context implements this
// interface; the compiler package never imports evalctx, which keeps the
// two packages from forming an import cycle around the compiled-expression
// cache that evalctx holds.
type Context interface {
	Variable(name string) (value.Value, bool)
	Function(name string) (UserFunc, bool)
	// Index and Total report the $index/$total values threaded by an
	// enclosing iteration combinator. The base context reports ok=false;
	// WithIndex wraps a parent context to supply $index inside a lambda's
	// evaluation. No builtin in this implementation threads $total, so
	// nothing currently wraps a context to supply it; Total always reports
	// ok=false.
	Index() (value.Value, bool)
	Total() (value.Value, bool)
	// Now, Today, and TimeOfDay return the memoized wall-clock instant for
	// this top-level evaluation, computing and caching it on first call.
	Now() value.Value
	Today() value.Value
	TimeOfDay() value.Value
}

// Compile turns an AST produced by internal/parser into an executable tree.
func Compile(node ast.Node) (CompiledNode, *diagnostics.Error) {
	switch n := node.(type) {
	case *ast.Literal:
		return compileLiteral(n)
	case *ast.Null:
		return compileNull(n)
	case *ast.Identifier:
		return compileIdentifier(n)
	case *ast.Variable:
		return compileVariable(n)
	case *ast.EnvVariable:
		return compileEnvVariable(n)
	case *ast.Dot:
		return compileDot(n)
	case *ast.Unary:
		return compileUnary(n)
	case *ast.Binary:
		return compileBinary(n)
	case *ast.Indexer:
		return compileIndexer(n)
	case *ast.Function:
		return compileFunction(n)
	case *ast.As:
		return compileAs(n)
	case *ast.Is:
		return compileIs(n)
	default:
		return nil, diagnostics.AtRange(diagnostics.PhaseCompiler, diagnostics.ErrUnknownNodeKind,
			toRange(node.Range()), "unknown AST node kind")
	}
}

func toRange(r ast.Range) diagnostics.Range {
	return diagnostics.Range{Start: r.Start, End: r.End, Line: r.Line, Column: r.Column}
}

// --- $index / $total context wrappers ---

type indexContext struct {
	Context
	idx value.Value
}

func (c indexContext) Index() (value.Value, bool) { return c.idx, true }

// WithIndex returns a Context that reports idx for $index, delegating
// everything else to parent.
func WithIndex(parent Context, idx int) Context {
	return indexContext{Context: parent, idx: value.Int(int64(idx))}
}
