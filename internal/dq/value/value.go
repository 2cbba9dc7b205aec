// Package value holds the result-sequence operations shared by the transform
// pipeline and the execution engine: combining, simplification, discard
// markers, and stringification.
package value

import (
	"encoding/json"
	"fmt"

	"github.com/jacoelho/dq/internal/dq/number"
)

// Discard wraps a value that was already recorded into the variable
// environment and must not appear in the final combined result. Markers are
// created by the keep stage (save without keep) and stripped exactly once at
// the end of a chain pass; they are never nested.
type Discard struct {
	Value any
}

// Combine merges two result sequences. An absent side yields the other;
// otherwise the flattened concatenation, never a nested sequence.
func Combine(a, b []any) []any {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	return append(a, b...)
}

// StripDiscards removes Discard-wrapped entries from a result sequence.
func StripDiscards(values []any) []any {
	kept := values[:0:0]
	for _, v := range values {
		if _, ok := v.(Discard); ok {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

// Unwrap returns the payload of a Discard marker, or the value itself.
func Unwrap(v any) any {
	if d, ok := v.(Discard); ok {
		return d.Value
	}
	return v
}

// Simplify collapses a result sequence: empty becomes nil, a singleton its
// bare element, anything longer stays a sequence.
func Simplify(values []any) any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

// Stringify renders a value the way templates and saved variables see it.
// Nil renders empty, numbers without a trailing .0, structured values as
// compact JSON, and anything with a String method through it.
func Stringify(v any) string {
	switch current := v.(type) {
	case nil:
		return ""
	case string:
		return current
	case bool:
		if current {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return current.String()
	case Discard:
		return Stringify(current.Value)
	case map[string]any, []any:
		encoded, err := json.Marshal(current)
		if err != nil {
			return fmt.Sprintf("%v", current)
		}
		return string(encoded)
	default:
		if f, ok := number.ToFloat64(current); ok {
			return number.Format(f)
		}
		return fmt.Sprintf("%v", current)
	}
}

// ToJSON normalises a result sequence into plain JSON values by a
// marshal/decode round trip. Opaque values (HTML elements) serialise through
// their MarshalJSON or String forms, so the output is a valid synthetic JSON
// array document for the next array-pipe stage.
func ToJSON(values []any) ([]any, error) {
	encoded, err := json.Marshal(normalize(values))
	if err != nil {
		return nil, fmt.Errorf("serialize result: %w", err)
	}

	var decoded []any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, fmt.Errorf("reparse result: %w", err)
	}
	return decoded, nil
}

func normalize(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		switch current := v.(type) {
		case json.Marshaler, nil, string, bool, map[string]any, []any:
			out[i] = current
		case fmt.Stringer:
			out[i] = current.String()
		default:
			if _, ok := number.ToFloat64(current); ok {
				out[i] = current
				continue
			}
			out[i] = Stringify(current)
		}
	}
	return out
}
