package pathql

import (
	"testing"

	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

func patientDoc() Value {
	return value.NewObject(map[string]Value{
		"resourceType": value.Str("Patient"),
		"name": value.NewList([]Value{
			value.NewObject(map[string]Value{"given": value.Str("Ada"), "family": value.Str("Lovelace")}, []string{"given", "family"}),
		}),
	}, []string{"resourceType", "name"})
}

func TestEvaluateSimplePath(t *testing.T) {
	ctx := CreateContext()
	seq, err := Evaluate(ctx, "name.given", patientDoc())
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0].Str != "Ada" {
		t.Fatalf("got %#v", seq)
	}
}

func TestEvaluateParseErrorPropagates(t *testing.T) {
	ctx := CreateContext()
	_, err := Evaluate(ctx, "name..given", patientDoc())
	if err == nil {
		t.Fatal("expected a parse error for a malformed path")
	}
}

func TestEvaluatePopulatesCacheOnMiss(t *testing.T) {
	ctx := CreateContext()
	stats := GetCacheStats(ctx)
	if stats.Size != 0 {
		t.Fatalf("expected an empty cache initially, got %d", stats.Size)
	}
	if _, err := Evaluate(ctx, "name.given", patientDoc()); err != nil {
		t.Fatal(err)
	}
	stats = GetCacheStats(ctx)
	if stats.Size != 1 || stats.Expressions[0] != "name.given" {
		t.Fatalf("got %#v", stats)
	}
}

func TestEvaluateReusesCacheOnSecondCall(t *testing.T) {
	ctx := CreateContext()
	if _, err := Evaluate(ctx, "name.given", patientDoc()); err != nil {
		t.Fatal(err)
	}
	if _, err := Evaluate(ctx, "name.given", patientDoc()); err != nil {
		t.Fatal(err)
	}
	if GetCacheStats(ctx).Size != 1 {
		t.Fatalf("expected the second call to hit the cache rather than add an entry, got %#v", GetCacheStats(ctx))
	}
}

func TestPrecompileFillsCacheWithoutEvaluating(t *testing.T) {
	ctx := CreateContext()
	if err := Precompile(ctx, []string{"name.given", "name.family"}); err != nil {
		t.Fatal(err)
	}
	stats := GetCacheStats(ctx)
	if stats.Size != 2 {
		t.Fatalf("got %#v", stats)
	}
}

func TestPrecompileStopsAtFirstError(t *testing.T) {
	ctx := CreateContext()
	err := Precompile(ctx, []string{"name.given", "name..bad", "name.family"})
	if err == nil {
		t.Fatal("expected the malformed expression to be reported")
	}
	if GetCacheStats(ctx).Size != 1 {
		t.Fatalf("expected only the expression before the failure to be cached, got %#v", GetCacheStats(ctx))
	}
}

func TestClearCacheEmptiesIt(t *testing.T) {
	ctx := CreateContext()
	if _, err := Evaluate(ctx, "name.given", patientDoc()); err != nil {
		t.Fatal(err)
	}
	ClearCache(ctx)
	if GetCacheStats(ctx).Size != 0 {
		t.Fatal("expected ClearCache to empty the cache")
	}
}

func TestWithCacheSizeEvictsUnderPressure(t *testing.T) {
	ctx := CreateContext(WithCacheSize(1))
	if _, err := Evaluate(ctx, "name.given", patientDoc()); err != nil {
		t.Fatal(err)
	}
	if _, err := Evaluate(ctx, "name.family", patientDoc()); err != nil {
		t.Fatal(err)
	}
	stats := GetCacheStats(ctx)
	if stats.Size != 1 || stats.Expressions[0] != "name.family" {
		t.Fatalf("expected the first expression to be evicted, got %#v", stats)
	}
}

func TestWithVariablesAreVisibleToExpressions(t *testing.T) {
	ctx := CreateContext(WithVariables(map[string]Value{"threshold": value.Int(10)}))
	seq, err := Evaluate(ctx, "%threshold", patientDoc())
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0].Int != 10 {
		t.Fatalf("got %#v", seq)
	}
}

func TestEvaluateScalarDocumentWrapsAsSingletonFocus(t *testing.T) {
	ctx := CreateContext()
	seq, err := Evaluate(ctx, "$this", value.Int(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0].Int != 5 {
		t.Fatalf("got %#v", seq)
	}
}

func TestEvaluateListDocumentSpreadsAsFocus(t *testing.T) {
	ctx := CreateContext()
	list := value.NewList([]Value{value.Int(1), value.Int(2), value.Int(3)})
	seq, err := Evaluate(ctx, "$this", list)
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 3 {
		t.Fatalf("expected a list document to spread into three focus elements, got %#v", seq)
	}
}

func TestParseThenCompileThenEvaluateManually(t *testing.T) {
	node, err := Parse("name.given")
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := Compile(node)
	if err != nil {
		t.Fatal(err)
	}
	doc := patientDoc()
	seq, cerr := compiled(value.Seq{doc}, doc, CreateContext())
	if cerr != nil {
		t.Fatal(cerr)
	}
	if len(seq) != 1 || seq[0].Str != "Ada" {
		t.Fatalf("got %#v", seq)
	}
}
