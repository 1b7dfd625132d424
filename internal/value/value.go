// Package value defines the dynamically typed value model every compiled
// node operates over (spec §3): boolean, integer, decimal, string,
// temporal-string, quantity-record, object, and list. There is no explicit
// null — absence is an empty sequence of Values, represented as []Value
// (never a Value itself).
package value

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind discriminates a Value's payload.
type Kind string

const (
	Boolean  Kind = "Boolean"
	Integer  Kind = "Integer"
	Decimal  Kind = "Decimal"
	String   Kind = "String"
	Date     Kind = "Date"
	Time     Kind = "Time"
	DateTime Kind = "DateTime"
	Quantity Kind = "Quantity"
	Object   Kind = "Object"
	List     Kind = "List" // a field value that was a JSON array; the
	// compiler spreads this when navigating, it is never returned as a
	// top-level focus element itself.
)

// Value is a single element of a sequence. Exactly one payload field is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind

	Bool bool
	Int  int64
	Dec  decimal.Decimal
	Str  string // string payload, or the raw ISO text for Date/Time/DateTime

	Unit string // Quantity only

	Obj  map[string]Value
	Keys []string // Object field insertion order, for stable display/iteration

	Elems []Value // List only
}

// Seq is an ordered, possibly-empty multiset of values — the sole result
// shape of every compiled expression (spec §3 invariant 1).
type Seq []Value

func Bool(b bool) Value   { return Value{Kind: Boolean, Bool: b} }
func Int(i int64) Value   { return Value{Kind: Integer, Int: i} }
func Dec(d decimal.Decimal) Value { return Value{Kind: Decimal, Dec: d} }
func Str(s string) Value  { return Value{Kind: String, Str: s} }
func DateVal(s string) Value     { return Value{Kind: Date, Str: s} }
func TimeVal(s string) Value     { return Value{Kind: Time, Str: s} }
func DateTimeVal(s string) Value { return Value{Kind: DateTime, Str: s} }

func Qty(d decimal.Decimal, unit string) Value {
	return Value{Kind: Quantity, Dec: d, Unit: unit}
}

// NewObject builds an object value from a map, with Keys recording the supplied
// order (callers constructing from JSON should pass the decoded key order;
// spec §3 does not require preservation, so map order is acceptable too).
func NewObject(fields map[string]Value, keys []string) Value {
	return Value{Kind: Object, Obj: fields, Keys: keys}
}

func NewList(elems []Value) Value {
	return Value{Kind: List, Elems: elems}
}

// IsTemporal reports whether v is one of Date/Time/DateTime.
func (v Value) IsTemporal() bool {
	return v.Kind == Date || v.Kind == Time || v.Kind == DateTime
}

// IsNumeric reports whether v is Integer or Decimal.
func (v Value) IsNumeric() bool {
	return v.Kind == Integer || v.Kind == Decimal
}

// AsDecimal returns v's numeric value as a decimal.Decimal; ok is false for
// non-numeric kinds.
func (v Value) AsDecimal() (decimal.Decimal, bool) {
	switch v.Kind {
	case Integer:
		return decimal.NewFromInt(v.Int), true
	case Decimal:
		return v.Dec, true
	case Quantity:
		return v.Dec, true
	default:
		return decimal.Decimal{}, false
	}
}

// TypeName classifies v per the `type()` builtin's enumerated names
// (spec §4.4): Null|Boolean|Integer|Decimal|String|Date|Time|DateTime|
// Quantity|List|Object.
func (v Value) TypeName() string {
	switch v.Kind {
	case Boolean:
		return "Boolean"
	case Integer:
		return "Integer"
	case Decimal:
		return "Decimal"
	case String:
		return "String"
	case Date:
		return "Date"
	case Time:
		return "Time"
	case DateTime:
		return "DateTime"
	case Quantity:
		return "Quantity"
	case List:
		return "List"
	case Object:
		return "Object"
	default:
		return "Null"
	}
}

// ToDisplayString renders v the way the `toString`/string-concatenation
// fallback does: plain textual form, no quoting.
func (v Value) ToDisplayString() string {
	switch v.Kind {
	case Boolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case Integer:
		return fmt.Sprintf("%d", v.Int)
	case Decimal:
		return v.Dec.String()
	case String, Date, Time, DateTime:
		return v.Str
	case Quantity:
		if v.Unit == "" {
			return v.Dec.String()
		}
		return v.Dec.String() + " '" + v.Unit + "'"
	case Object:
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range v.Keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
		}
		b.WriteByte('}')
		return b.String()
	default:
		return ""
	}
}

// Equal implements value equality (spec §4.4 equality/union semantics):
// same kind and same payload. Objects compare field-by-field irrespective
// of key order; Quantity compares value and unit without conversion.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Integer and Decimal may still compare equal as numbers.
		if a.IsNumeric() && b.IsNumeric() {
			ad, _ := a.AsDecimal()
			bd, _ := b.AsDecimal()
			return ad.Equal(bd)
		}
		return false
	}
	switch a.Kind {
	case Boolean:
		return a.Bool == b.Bool
	case Integer:
		return a.Int == b.Int
	case Decimal:
		return a.Dec.Equal(b.Dec)
	case String, Date, Time, DateTime:
		return a.Str == b.Str
	case Quantity:
		return a.Dec.Equal(b.Dec) && a.Unit == b.Unit
	case Object:
		if len(a.Obj) != len(b.Obj) {
			return false
		}
		for k, av := range a.Obj {
			bv, ok := b.Obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case List:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// canonicalKey builds a stable, order-independent string key for duplicate
// detection (spec §4.4 union: "a stable key such as canonical JSON
// serialization suffices").
func canonicalKey(v Value) string {
	switch v.Kind {
	case Boolean:
		return "b:" + v.ToDisplayString()
	case Integer:
		return "i:" + v.ToDisplayString()
	case Decimal:
		return "d:" + v.Dec.String()
	case String:
		return "s:" + v.Str
	case Date:
		return "D:" + v.Str
	case Time:
		return "T:" + v.Str
	case DateTime:
		return "DT:" + v.Str
	case Quantity:
		return "q:" + v.Dec.String() + ":" + v.Unit
	case Object:
		keys := make([]string, 0, len(v.Obj))
		for k := range v.Obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("o:{")
		for _, k := range keys {
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(canonicalKey(v.Obj[k]))
			b.WriteByte(';')
		}
		b.WriteByte('}')
		return b.String()
	case List:
		var b strings.Builder
		b.WriteString("l:[")
		for _, e := range v.Elems {
			b.WriteString(canonicalKey(e))
			b.WriteByte(',')
		}
		b.WriteByte(']')
		return b.String()
	default:
		return "?"
	}
}

// Distinct removes structural duplicates from seq, preserving
// first-occurrence order (spec §4.4 union, and the `distinct` builtin).
func Distinct(seq Seq) Seq {
	seen := make(map[string]bool, len(seq))
	out := make(Seq, 0, len(seq))
	for _, v := range seq {
		k := canonicalKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
