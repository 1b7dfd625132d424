// Package pathql is the public entry point to the path-query engine:
// parse an expression to an AST, compile the AST to an executable closure
// tree, and evaluate it against a document held in a long-lived Context
// (spec §6).
package pathql

import (
	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/compiler"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/evalctx"
	"github.com/atomic-ehr/fhirpath-go/internal/parser"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// Node is a parsed expression's AST root, returned by Parse.
type Node = ast.Node

// Compiled is an executable expression, returned by Compile.
type Compiled = compiler.CompiledNode

// Context is the long-lived evaluation context: user variables, custom
// functions, and the compiled-expression cache.
type Context = evalctx.Context

// Error is the single error type produced by every stage.
type Error = diagnostics.Error

// Value is one element of a result sequence.
type Value = value.Value

// ContextOption configures a Context created by CreateContext.
type ContextOption = evalctx.Option

// WithCacheSize sets the compiled-expression LRU cache capacity.
func WithCacheSize(size int) ContextOption { return evalctx.WithCacheSize(size) }

// WithVariables seeds the user variable map.
func WithVariables(vars map[string]Value) ContextOption { return evalctx.WithVariables(vars) }

// WithFunctions seeds the user-registered custom function map.
func WithFunctions(funcs map[string]compiler.UserFunc) ContextOption {
	return evalctx.WithFunctions(funcs)
}

// CreateContext builds a new evaluation Context (spec §6
// `createContext({variables?, functions?, cacheSize?})`).
func CreateContext(opts ...ContextOption) *Context {
	return evalctx.New(opts...)
}

// Parse tokenizes and parses expr into an AST (spec §6 `parse`).
func Parse(expr string) (Node, *Error) {
	return parser.Parse(expr)
}

// Compile turns a parsed AST into an executable closure tree (spec §6
// `compile`).
func Compile(node Node) (Compiled, *Error) {
	return compiler.Compile(node)
}

// Evaluate implements spec §4.5's evaluation driver: look up expr in the
// context's cache; on a miss, parse, compile, and insert; wrap data into a
// one-element focus (or use it as-is if already a sequence); choose the
// root document as data[0] when data is a list, else data itself; invoke
// the compiled root with (focus, root, ctx).
//
// The context's temporal-memoization slots (now/today/timeOfDay) are reset
// at the start of every call, per the resolved open question in DESIGN.md —
// this differs from a literal reading of spec §4.5, which leaves the reset
// to the caller.
func Evaluate(ctx *Context, expr string, data Value) (value.Seq, *Error) {
	compiled, err := getOrCompile(ctx, expr)
	if err != nil {
		return nil, err
	}
	ctx.ResetEvaluation()

	focus, root := focusAndRoot(data)
	return compiled(focus, root, ctx)
}

func focusAndRoot(data Value) (value.Seq, Value) {
	if data.Kind == value.List {
		root := data
		if len(data.Elems) > 0 {
			root = data.Elems[0]
		}
		return append(value.Seq{}, data.Elems...), root
	}
	return value.Seq{data}, data
}

func getOrCompile(ctx *Context, expr string) (Compiled, *Error) {
	if c, ok := ctx.Cache().Get(expr); ok {
		return c, nil
	}
	node, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	compiled, err := Compile(node)
	if err != nil {
		return nil, err
	}
	ctx.Cache().Put(expr, compiled)
	return compiled, nil
}

// Precompile parses and compiles each expression in exprs, inserting each
// into the context's cache so a later Evaluate call is a cache hit
// (spec §6 `precompile(ctx, text[])`). It returns the first error
// encountered, if any; expressions before the failing one remain cached.
func Precompile(ctx *Context, exprs []string) *Error {
	for _, expr := range exprs {
		if _, err := getOrCompile(ctx, expr); err != nil {
			return err
		}
	}
	return nil
}

// ClearCache empties the context's compiled-expression cache (spec §6
// `clearCache(ctx)`).
func ClearCache(ctx *Context) {
	ctx.Cache().Purge()
}

// CacheStats reports the compiled-expression cache's current contents
// (spec §6 `getCacheStats(ctx) -> {size, expressions[]}`).
type CacheStats struct {
	Size        int
	Expressions []string
}

// GetCacheStats returns the cache's current size and cached expression
// texts, least- to most-recently-used.
func GetCacheStats(ctx *Context) CacheStats {
	return CacheStats{
		Size:        ctx.Cache().Len(),
		Expressions: ctx.Cache().Keys(),
	}
}
