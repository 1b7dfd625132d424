// Package evalctx implements the evaluation Context (spec §3): the
// long-lived object threaded through Evaluate calls holding user variables,
// user-registered functions, the compiled-expression cache, and the
// per-evaluation temporal memoization slots.
//
// Context structurally satisfies compiler.Context (duck typing) without
// internal/compiler importing this package, which is what avoids an import
// cycle: Context must hold a cache of compiler.CompiledNode, so it imports
// compiler; compiler cannot import back.
package evalctx

import (
	"time"

	"github.com/atomic-ehr/fhirpath-go/internal/cache"
	"github.com/atomic-ehr/fhirpath-go/internal/compiler"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// Context is the stateful evaluation context a caller creates once and
// reuses across many Evaluate calls (spec §4.5, §9).
type Context struct {
	variables map[string]value.Value
	functions map[string]compiler.UserFunc
	cache     *cache.Cache[compiler.CompiledNode]

	// Per-evaluation memoization slots (spec §9 open question 1: cleared at
	// the start of every top-level Evaluate call, not shared across calls).
	now       *value.Value
	today     *value.Value
	timeOfDay *value.Value

	// nowFn supplies the wall-clock instant; overridable for deterministic
	// tests.
	nowFn func() time.Time
}

// Option configures a new Context.
type Option func(*Context)

// WithCacheSize sets the compiled-expression LRU cache capacity.
func WithCacheSize(size int) Option {
	return func(c *Context) { c.cache = cache.New[compiler.CompiledNode](size) }
}

// WithVariables seeds the user variable map.
func WithVariables(vars map[string]value.Value) Option {
	return func(c *Context) {
		for k, v := range vars {
			c.variables[k] = v
		}
	}
}

// WithFunctions seeds the user-registered custom function map.
func WithFunctions(funcs map[string]compiler.UserFunc) Option {
	return func(c *Context) {
		for k, f := range funcs {
			c.functions[k] = f
		}
	}
}

// withClock overrides the wall-clock source; used by tests.
func withClock(fn func() time.Time) Option {
	return func(c *Context) { c.nowFn = fn }
}

// New builds a Context with the given options. Cache defaults to
// cache.DefaultSize if WithCacheSize is not supplied.
func New(opts ...Option) *Context {
	c := &Context{
		variables: make(map[string]value.Value),
		functions: make(map[string]compiler.UserFunc),
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New[compiler.CompiledNode](cache.DefaultSize)
	}
	return c
}

// Cache exposes the compiled-expression cache to the pathql package's
// Evaluate/Precompile/ClearCache/GetCacheStats operations.
func (c *Context) Cache() *cache.Cache[compiler.CompiledNode] { return c.cache }

// SetVariable registers or overwrites a user variable.
func (c *Context) SetVariable(name string, v value.Value) { c.variables[name] = v }

// SetFunction registers or overwrites a custom function.
func (c *Context) SetFunction(name string, fn compiler.UserFunc) { c.functions[name] = fn }

// ResetEvaluation clears the now/today/timeOfDay memoization slots. The
// pathql package calls this at the start of every top-level Evaluate.
func (c *Context) ResetEvaluation() {
	c.now = nil
	c.today = nil
	c.timeOfDay = nil
}

// --- compiler.Context implementation ---

func (c *Context) Variable(name string) (value.Value, bool) {
	v, ok := c.variables[name]
	return v, ok
}

func (c *Context) Function(name string) (compiler.UserFunc, bool) {
	fn, ok := c.functions[name]
	return fn, ok
}

// Index reports no ambient value outside a lambda sub-evaluation;
// compiler.WithIndex wraps this Context to supply it. Total always reports
// absent: no builtin in this implementation threads $total.
func (c *Context) Index() (value.Value, bool) { return value.Value{}, false }
func (c *Context) Total() (value.Value, bool) { return value.Value{}, false }

func (c *Context) Now() value.Value {
	if c.now == nil {
		t := c.nowFn().Format("2006-01-02T15:04:05.000Z07:00")
		v := value.DateTimeVal(t)
		c.now = &v
	}
	return *c.now
}

func (c *Context) Today() value.Value {
	if c.today == nil {
		t := c.nowFn().Format("2006-01-02")
		v := value.DateVal(t)
		c.today = &v
	}
	return *c.today
}

func (c *Context) TimeOfDay() value.Value {
	if c.timeOfDay == nil {
		t := c.nowFn().Format("15:04:05.000")
		v := value.TimeVal(t)
		c.timeOfDay = &v
	}
	return *c.timeOfDay
}
