package value

import "testing"

func TestFromJSONPreservesKeyOrder(t *testing.T) {
	v, err := FromJSON([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"z", "a", "m"}
	if len(v.Keys) != len(want) {
		t.Fatalf("got keys %v", v.Keys)
	}
	for i, k := range want {
		if v.Keys[i] != k {
			t.Errorf("key %d: got %q, want %q", i, v.Keys[i], k)
		}
	}
}

func TestFromJSONClassifiesIntegerVsDecimal(t *testing.T) {
	v, err := FromJSON([]byte(`{"i":1,"d":1.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if v.Obj["i"].Kind != Integer {
		t.Errorf("expected whole number to decode as Integer, got %s", v.Obj["i"].Kind)
	}
	if v.Obj["d"].Kind != Decimal {
		t.Errorf("expected fractional number to decode as Decimal, got %s", v.Obj["d"].Kind)
	}
}

func TestFromJSONArray(t *testing.T) {
	v, err := FromJSON([]byte(`[1,2,3]`))
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != List || len(v.Elems) != 3 {
		t.Fatalf("got %#v", v)
	}
}

func TestFromJSONNullBecomesEmptyList(t *testing.T) {
	v, err := FromJSON([]byte(`{"a":null}`))
	if err != nil {
		t.Fatal(err)
	}
	a := v.Obj["a"]
	if a.Kind != List || len(a.Elems) != 0 {
		t.Fatalf("expected null to decode as an empty List, got %#v", a)
	}
}

func TestFromJSONScalars(t *testing.T) {
	v, err := FromJSON([]byte(`{"s":"hi","b":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if v.Obj["s"].Kind != String || v.Obj["s"].Str != "hi" {
		t.Fatalf("got %#v", v.Obj["s"])
	}
	if v.Obj["b"].Kind != Boolean || !v.Obj["b"].Bool {
		t.Fatalf("got %#v", v.Obj["b"])
	}
}

func TestFromJSONDuplicateKeyKeepsLastValueFirstPosition(t *testing.T) {
	v, err := FromJSON([]byte(`{"a":1,"a":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Keys) != 1 || v.Keys[0] != "a" {
		t.Fatalf("got keys %v", v.Keys)
	}
	if v.Obj["a"].Int != 2 {
		t.Fatalf("expected the later duplicate value to win, got %d", v.Obj["a"].Int)
	}
}

func TestFromJSONInvalidFails(t *testing.T) {
	if _, err := FromJSON([]byte(`{`)); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
}
