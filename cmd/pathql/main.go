// Command pathql evaluates a path-query expression against a JSON document
// and prints the resulting sequence, one value per line.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/atomic-ehr/fhirpath-go/internal/value"
	pathql "github.com/atomic-ehr/fhirpath-go"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <expression> <document.json>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "       <document.json> may be \"-\" to read from stdin")
		os.Exit(1)
	}

	runID := uuid.New()
	expr := os.Args[1]
	docPath := os.Args[2]

	doc, err := readDocument(docPath)
	if err != nil {
		log.Fatalf("run %s: reading document: %s", runID, err)
	}

	ctx := pathql.CreateContext()
	results, evalErr := pathql.Evaluate(ctx, expr, doc)
	if evalErr != nil {
		log.Fatalf("run %s: evaluating %q: %s", runID, expr, evalErr)
	}

	log.Printf("run %s: %q -> %d result(s)", runID, expr, len(results))
	for _, v := range results {
		fmt.Println(renderResult(v))
	}
}

func readDocument(path string) (value.Value, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return value.Value{}, err
		}
		defer f.Close()
		r = f
	}
	return value.DecodeJSON(r)
}

// renderResult formats a result value for line-oriented output: objects and
// lists are JSON-encoded via objectify (falling back to their display
// string if encoding fails); other values print their display string.
func renderResult(v value.Value) string {
	switch v.Kind {
	case value.Object, value.List:
		b, err := json.Marshal(objectify(v))
		if err != nil {
			return v.ToDisplayString()
		}
		return string(b)
	default:
		return v.ToDisplayString()
	}
}

// objectify converts a Value back into plain Go data for JSON re-encoding,
// used only for CLI display of compound results.
func objectify(v value.Value) any {
	switch v.Kind {
	case value.Object:
		m := make(map[string]any, len(v.Keys))
		for _, k := range v.Keys {
			m[k] = objectify(v.Obj[k])
		}
		return m
	case value.List:
		out := make([]any, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = objectify(e)
		}
		return out
	case value.Integer:
		return v.Int
	case value.Decimal:
		return v.Dec.String()
	case value.Boolean:
		return v.Bool
	default:
		return v.ToDisplayString()
	}
}
