package tuple

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONLReader decodes a stream of event objects, one per line. Each key is
// a branch name; numbers become scalars, arrays of numbers become arrays.
// Booleans are accepted and stored as 0/1 so flags like lep_matched can be
// written naturally.
type JSONLReader struct {
	dec   *json.Decoder
	index int
}

// NewJSONLReader wraps r.
func NewJSONLReader(r io.Reader) *JSONLReader {
	return &JSONLReader{dec: json.NewDecoder(r)}
}

// Index returns the number of events decoded so far.
func (r *JSONLReader) Index() int {
	return r.index
}

// Next decodes the next event. It returns io.EOF when the stream is exhausted.
func (r *JSONLReader) Next() (*MapEvent, error) {
	var raw map[string]any
	if err := r.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode event %d: %w", r.index, err)
	}

	ev := NewMapEvent()
	for name, val := range raw {
		switch v := val.(type) {
		case []any:
			arr := make([]float64, len(v))
			for i, elem := range v {
				f, err := toFloat(elem)
				if err != nil {
					return nil, fmt.Errorf("event %d: %s[%d]: %w", r.index, name, i, err)
				}
				arr[i] = f
			}
			ev.Arrays[name] = arr
		default:
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("event %d: %s: %w", r.index, name, err)
			}
			ev.Scalars[name] = f
		}
	}
	r.index++
	return ev, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
