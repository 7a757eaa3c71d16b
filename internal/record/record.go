package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Record is the opaque attribute map stored in a collection and carried by
// queued operations. Values are restricted to the JSON types the canonical
// encoder accepts: string, int64, bool, nil, []any and map[string]any.
type Record map[string]any

// ID returns the record's "id" attribute, or "" when absent.
func (r Record) ID() string {
	return r.String("id")
}

// String returns a string attribute, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns an integer attribute.
func (r Record) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

// Bool returns a boolean attribute, false when absent.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Marshal encodes r as canonical JSON.
func (r Record) Marshal() ([]byte, error) {
	return MarshalCanonical(r)
}

// Parse decodes JSON object bytes into a Record, converting numbers to int64.
func Parse(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode record: not an object")
	}
	v, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return Record(v.(map[string]any)), nil
}

// From converts a tagged struct (or map) into a Record.
func From(v any) (Record, error) {
	if r, ok := v.(Record); ok {
		return r.Clone(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return Parse(data)
}

// MustFrom is From for values known to be encodable, such as domain structs.
func MustFrom(v any) Record {
	r, err := From(v)
	if err != nil {
		panic(err)
	}
	return r
}

// Decode converts a Record into T via its JSON tags.
func Decode[T any](r Record) (T, error) {
	var out T
	data, err := MarshalCanonical(r)
	if err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	return out, nil
}

func normalize(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", val)
		}
		return n, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			nv, err := normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			nv, err := normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}
