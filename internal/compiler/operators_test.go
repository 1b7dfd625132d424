package compiler

import (
	"testing"

	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

// the right side must never execute: calling an unregistered custom function
// would raise ErrUnknownFunction if evaluated, so reaching a clean result
// proves the operator short-circuited.

func TestAndShortCircuitsOnFalseLeft(t *testing.T) {
	seq, err := evalExpr(t, "false and bogusFn()", value.NewObject(nil, nil))
	if err != nil {
		t.Fatalf("expected and to short-circuit without raising, got %v", err)
	}
	if got := singletonBool(t, seq, nil); got {
		t.Fatalf("got %v, want false", got)
	}
}

func TestOrShortCircuitsOnTrueLeft(t *testing.T) {
	seq, err := evalExpr(t, "true or bogusFn()", value.NewObject(nil, nil))
	if err != nil {
		t.Fatalf("expected or to short-circuit without raising, got %v", err)
	}
	if got := singletonBool(t, seq, nil); !got {
		t.Fatalf("got %v, want true", got)
	}
}

func TestThreeValuedAndWithEmpty(t *testing.T) {
	// {} and true -> {}
	seq, err := evalExpr(t, "{} and true", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 0 {
		t.Fatalf("got %#v, want empty", seq)
	}
}

func TestThreeValuedAndFalseWinsOverEmpty(t *testing.T) {
	// {} and false -> false, since false on either side forces false
	seq, err := evalExpr(t, "{} and false", value.NewObject(nil, nil))
	if got := singletonBool(t, seq, err); got {
		t.Fatalf("got %v, want false", got)
	}
}

func TestXorNoShortCircuit(t *testing.T) {
	seq, err := evalExpr(t, "true xor false", value.NewObject(nil, nil))
	if got := singletonBool(t, seq, err); !got {
		t.Fatalf("got %v, want true", got)
	}
}

func TestImpliesFalseAntecedent(t *testing.T) {
	seq, err := evalExpr(t, "false implies bogusFn()", value.NewObject(nil, nil))
	if got := singletonBool(t, seq, err); !got {
		t.Fatalf("expected false implies anything to be true, got %v (err=%v)", got, err)
	}
}

func TestEqualityBothEmpty(t *testing.T) {
	seq, err := evalExpr(t, "{} = {}", value.NewObject(nil, nil))
	if got := singletonBool(t, seq, err); !got {
		t.Fatalf("got %v, want true", got)
	}
}

func TestEqualityOneEmptyIsEmpty(t *testing.T) {
	seq, err := evalExpr(t, "{} = 1", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 0 {
		t.Fatalf("got %#v, want empty", seq)
	}
}

func TestEqualityStrictTypeMismatchRaises(t *testing.T) {
	_, err := evalExpr(t, "1 = 'x'", value.NewObject(nil, nil))
	if err == nil {
		t.Fatal("expected a type mismatch error for = on incompatible types")
	}
}

func TestEquivalenceTypeMismatchIsJustUnequal(t *testing.T) {
	seq, err := evalExpr(t, "1 ~ 'x'", value.NewObject(nil, nil))
	if got := singletonBool(t, seq, err); got {
		t.Fatalf("got %v, want false", got)
	}
}

func TestEqualitySingletonVsCollectionBroadcasts(t *testing.T) {
	doc := value.NewObject(map[string]value.Value{
		"items": value.NewList([]value.Value{value.Int(1), value.Int(2), value.Int(1)}),
	}, []string{"items"})
	seq, err := evalExpr(t, "items = 1", doc)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false, true}
	if len(seq) != len(want) {
		t.Fatalf("got %#v", seq)
	}
	for i, w := range want {
		if seq[i].Bool != w {
			t.Errorf("index %d: got %v, want %v", i, seq[i].Bool, w)
		}
	}
}

func TestOrderingManyVsManyIsEmpty(t *testing.T) {
	doc := value.NewObject(map[string]value.Value{
		"a": value.NewList([]value.Value{value.Int(1), value.Int(2)}),
		"b": value.NewList([]value.Value{value.Int(3), value.Int(4)}),
	}, []string{"a", "b"})
	seq, err := evalExpr(t, "a < b", doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 0 {
		t.Fatalf("got %#v, want empty for many-vs-many ordering", seq)
	}
}

func TestOrderingIncomparableTypesRaises(t *testing.T) {
	_, err := evalExpr(t, "1 < 'x'", value.NewObject(nil, nil))
	if err == nil {
		t.Fatal("expected an incomparable-types error")
	}
}

func TestUnionDeduplicates(t *testing.T) {
	seq, err := evalExpr(t, "1 | 1 | 2", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 2 {
		t.Fatalf("got %#v", seq)
	}
}

func TestInAndContainsAreSymmetric(t *testing.T) {
	doc := value.NewObject(map[string]value.Value{
		"items": value.NewList([]value.Value{value.Int(1), value.Int(2), value.Int(3)}),
	}, []string{"items"})
	seq, err := evalExpr(t, "2 in items", doc)
	if got := singletonBool(t, seq, err); !got {
		t.Fatalf("got %v", got)
	}
	seq2, err2 := evalExpr(t, "items contains 2", doc)
	if got := singletonBool(t, seq2, err2); !got {
		t.Fatalf("got %v", got)
	}
}

func TestConcatTreatsEmptyAsEmptyString(t *testing.T) {
	seq, err := evalExpr(t, "{} & 'x'", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0].Str != "x" {
		t.Fatalf("got %#v", seq)
	}
}

func TestArithmeticOperatorDivByZeroYieldsEmpty(t *testing.T) {
	seq, err := evalExpr(t, "1 / 0", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 0 {
		t.Fatalf("got %#v, want empty for operator-form division by zero", seq)
	}
}

func TestArithmeticIntegerPreservesKind(t *testing.T) {
	seq, err := evalExpr(t, "2 + 3", value.NewObject(nil, nil))
	if got := singletonInt(t, seq, err); got != 5 {
		t.Fatalf("got %d", got)
	}
}

func TestArithmeticPlusStringConcatFallback(t *testing.T) {
	seq, err := evalExpr(t, "'a' + 'b'", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0].Str != "ab" {
		t.Fatalf("got %#v", seq)
	}
}

func TestTemporalSubtractionYieldsDaysQuantity(t *testing.T) {
	seq, err := evalExpr(t, "@2024-01-10 - @2024-01-01", value.NewObject(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0].Kind != value.Quantity || seq[0].Unit != "days" {
		t.Fatalf("got %#v", seq)
	}
	if seq[0].Dec.IntPart() != 9 {
		t.Fatalf("got %v days", seq[0].Dec)
	}
}

func TestUnaryMinusPreservesIntegerKind(t *testing.T) {
	seq, err := evalExpr(t, "-5", value.NewObject(nil, nil))
	if got := singletonInt(t, seq, err); got != -5 {
		t.Fatalf("got %d", got)
	}
}

func TestNotFunctionOnMultipleElementsRaises(t *testing.T) {
	doc := value.NewObject(map[string]value.Value{
		"items": value.NewList([]value.Value{value.Bool(true), value.Bool(false)}),
	}, []string{"items"})
	_, err := evalExpr(t, "items.not()", doc)
	if err == nil {
		t.Fatal("expected not() over a multi-element operand to raise, matching the bare `not` operator")
	}
	if err.Code != diagnostics.ErrNotBoolean {
		t.Fatalf("got code %v, want %v", err.Code, diagnostics.ErrNotBoolean)
	}
}
