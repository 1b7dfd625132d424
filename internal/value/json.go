package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// FromJSON decodes a JSON document into a Value tree (objects, arrays,
// strings, booleans, numbers, and null), preserving object key order via
// token-level decoding rather than json.Unmarshal into a map (which would
// discard it). A number whose literal is a whole number that fits in an
// int64 becomes an Integer; every other number becomes a Decimal.
func FromJSON(data []byte) (Value, error) {
	return DecodeJSON(bytes.NewReader(data))
}

// DecodeJSON is FromJSON reading from an io.Reader (used by cmd/pathql to
// stream a document file directly).
func DecodeJSON(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return decodeValue(dec)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return Value{}, fmt.Errorf("value: unexpected delimiter %q", t)
		}
	case json.Number:
		return numberValue(t)
	case string:
		return Str(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		// JSON null carries no payload (spec §3: there is no explicit null,
		// only the empty sequence); an empty List value flattens away to
		// nothing when navigateProperty spreads it.
		return NewList(nil), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported JSON token %T", tok)
	}
}

// numberValue classifies a JSON number as Integer or Decimal by its literal
// form (no decimal point/exponent → Integer), mirroring the compiler's
// literal-parsing rule since JSON itself does not distinguish the two.
func numberValue(n json.Number) (Value, error) {
	s := n.String()
	hasFraction := false
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == 'e' || s[i] == 'E' {
			hasFraction = true
			break
		}
	}
	if !hasFraction {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid number %q: %w", s, err)
	}
	return Dec(d), nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	fields := make(map[string]Value)
	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("value: expected object key, got %T", keyTok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		if _, dup := fields[key]; !dup {
			keys = append(keys, key)
		}
		fields[key] = v
	}
	// consume the closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return NewObject(fields, keys), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	var elems []Value
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	// consume the closing ']'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return NewList(elems), nil
}
