// Package config centralizes the constants shared across the lexer,
// parser, and compiler: the operator precedence levels and the built-in
// function signature registry. The keyword set lives in internal/token.
// Keeping one source of truth for each is what lets the three stages stay
// consistent as the language evolves.
package config

// Precedence levels, low to high, per spec §4.3. Gaps are left between
// levels so new operators can be inserted without renumbering.
const (
	PrecLowest = iota * 10
	PrecImplies
	PrecOrXor
	PrecAnd
	PrecEquality // =, !=, ~, !~, in, contains
	PrecInequality // <, >, <=, >=, is
	PrecUnion      // |
	PrecAdditive   // +, -, &
	PrecMultiplicative // *, /, div, mod
	PrecUnary          // unary +, unary -, not
	PrecPostfix        // ., [], (), as
)

// Signature describes a built-in function's compile-time arity contract.
type Signature struct {
	Name     string
	MinArity int
	MaxArity int // -1 means unbounded
}

// Builtins is the closed registry of built-in functions this implementation
// provides a runtime behavior for (spec §4.4's minimum set). Functions named
// in the tokenizer's keyword set (spec §6) but absent here are still valid
// tokens; calling one raises ErrUnknownFunction per the resolved open
// question (see DESIGN.md).
var Builtins = map[string]Signature{
	"where":      {"where", 1, 1},
	"select":     {"select", 1, 1},
	"exists":     {"exists", 0, 1},
	"empty":      {"empty", 0, 0},
	"count":      {"count", 0, 0},
	"first":      {"first", 0, 0},
	"last":       {"last", 0, 0},
	"tail":       {"tail", 0, 0},
	"skip":       {"skip", 1, 1},
	"take":       {"take", 1, 1},
	"distinct":   {"distinct", 0, 0},
	"all":        {"all", 1, 1},
	"any":        {"any", 1, 1},
	"length":     {"length", 0, 0},
	"startsWith": {"startsWith", 1, 1},
	"endsWith":   {"endsWith", 1, 1},
	"contains":   {"contains", 1, 1},
	"substring":  {"substring", 1, 2},
	"upper":      {"upper", 0, 0},
	"lower":      {"lower", 0, 0},
	"replace":    {"replace", 2, 2},
	"trim":       {"trim", 0, 0},
	"split":      {"split", 1, 1},
	"join":       {"join", 0, 1},
	"sum":        {"sum", 0, 0},
	"min":        {"min", 0, 0},
	"max":        {"max", 0, 0},
	"avg":        {"avg", 0, 0},
	"abs":        {"abs", 0, 0},
	"ceiling":    {"ceiling", 0, 0},
	"floor":      {"floor", 0, 0},
	"round":      {"round", 0, 1},
	"sqrt":       {"sqrt", 0, 0},
	"div":        {"div", 1, 1},
	"mod":        {"mod", 1, 1},
	"toString":   {"toString", 0, 0},
	"toInteger":  {"toInteger", 0, 0},
	"toDecimal":  {"toDecimal", 0, 0},
	"toDateTime": {"toDateTime", 0, 0},
	"now":        {"now", 0, 0},
	"today":      {"today", 0, 0},
	"timeOfDay":  {"timeOfDay", 0, 0},
	"not":        {"not", 0, 0},
	"iif":        {"iif", 3, 3},
	"type":       {"type", 0, 0},
	"value":      {"value", 0, 0},
}

// There is no fixed list of resource-type names acting as identifier type
// filters (spec §4.4 "Identifier"): internal/compiler treats any
// identifier starting with an uppercase letter as a candidate type-filter
// name. When the focus is a single object with a string resourceType, the
// filter yields the focus if the name matches and empty otherwise; in every
// other case the identifier is navigated as a property.
