package compiler

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atomic-ehr/fhirpath-go/internal/ast"
	"github.com/atomic-ehr/fhirpath-go/internal/diagnostics"
	"github.com/atomic-ehr/fhirpath-go/internal/value"
)

func lit(kind ast.LiteralKind, raw string) *ast.Literal {
	return &ast.Literal{Kind: kind, Raw: raw}
}

func TestLiteralValueString(t *testing.T) {
	v, err := literalValue(lit(ast.LitString, "hello"))
	if err != nil || v.Kind != value.String || v.Str != "hello" {
		t.Fatalf("got %#v err=%v", v, err)
	}
}

func TestLiteralValueBoolean(t *testing.T) {
	v, err := literalValue(lit(ast.LitBoolean, "true"))
	if err != nil || v.Kind != value.Boolean || !v.Bool {
		t.Fatalf("got %#v err=%v", v, err)
	}
	v2, err2 := literalValue(lit(ast.LitBoolean, "false"))
	if err2 != nil || v2.Bool {
		t.Fatalf("got %#v err=%v", v2, err2)
	}
}

func TestLiteralValueIntegerVsDecimal(t *testing.T) {
	v, err := literalValue(lit(ast.LitNumber, "42"))
	if err != nil || v.Kind != value.Integer || v.Int != 42 {
		t.Fatalf("got %#v err=%v", v, err)
	}
	v2, err2 := literalValue(lit(ast.LitNumber, "4.5"))
	if err2 != nil || v2.Kind != value.Decimal {
		t.Fatalf("got %#v err=%v", v2, err2)
	}
}

func TestLiteralValueInvalidNumberErrors(t *testing.T) {
	_, err := literalValue(lit(ast.LitNumber, "4.5.6"))
	if err == nil {
		t.Fatal("expected an error for a malformed decimal literal")
	}
}

func TestLiteralValueLong(t *testing.T) {
	v, err := literalValue(lit(ast.LitLong, "9223372036854775807"))
	if err != nil || v.Kind != value.Integer || v.Int != 9223372036854775807 {
		t.Fatalf("got %#v err=%v", v, err)
	}
}

func TestLiteralValueTemporalKinds(t *testing.T) {
	vd, _ := literalValue(lit(ast.LitDate, "@2024-01-01"))
	if vd.Kind != value.Date || vd.Str != "@2024-01-01" {
		t.Fatalf("got %#v", vd)
	}
	vt, _ := literalValue(lit(ast.LitTime, "@T10:00:00"))
	if vt.Kind != value.Time {
		t.Fatalf("got %#v", vt)
	}
	vdt, _ := literalValue(lit(ast.LitDateTime, "@2024-01-01T10:00:00"))
	if vdt.Kind != value.DateTime {
		t.Fatalf("got %#v", vdt)
	}
}

func TestLiteralValueQuantityQuotedUnit(t *testing.T) {
	v, err := literalValue(lit(ast.LitQuantity, "5 'mg'"))
	if err != nil || v.Kind != value.Quantity || v.Unit != "mg" {
		t.Fatalf("got %#v err=%v", v, err)
	}
	if !v.Dec.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("got %v", v.Dec)
	}
}

func TestLiteralValueQuantityWordUnit(t *testing.T) {
	v, err := literalValue(lit(ast.LitQuantity, "3 days"))
	if err != nil || v.Unit != "days" {
		t.Fatalf("got %#v err=%v", v, err)
	}
}

func TestParseQuantityLiteralMissingSpaceErrors(t *testing.T) {
	_, err := parseQuantityLiteral("5mg", diagnostics.Range{})
	if err == nil {
		t.Fatal("expected an error for a quantity literal missing its separating space")
	}
}

func TestCompileNullYieldsEmpty(t *testing.T) {
	c, err := compileNull(&ast.Null{})
	if err != nil {
		t.Fatal(err)
	}
	seq, cerr := c(value.Seq{}, value.Value{}, newTestContext())
	if cerr != nil || len(seq) != 0 {
		t.Fatalf("got %#v err=%v", seq, cerr)
	}
}
