// Package codec reads and writes the map domain as structured text. Objects
// decode to persistent maps, tagged literals route through the process-wide
// tag registry: decoding a registered tag yields an Instance of that schema,
// encoding a tagged map emits its tag again.
package codec

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"

	dynamap "github.com/reoring/dynamap"
	"github.com/reoring/dynamap/pmap"
)

// jsonTagPrefix marks a tagged literal in JSON: a single-key object
// {"~#tag": {...}} wraps the tagged value.
const jsonTagPrefix = "~#"

// backed is satisfied by any schema-typed handle.
type backed interface{ Map() pmap.Map }

// DecodeJSON decodes text into the map domain. Objects become pmap.Map
// values, arrays []any, numbers int64 or float64 (narrowest first), and a
// tagged literal becomes an Instance of the registered schema, or a tagged
// map when the tag is unknown.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, dynamap.Issues{dynamap.Issue{Path: "/", Code: dynamap.CodeParseError, Message: err.Error(), Cause: err}}
	}
	return fromJSONValue(v), nil
}

// DecodeJSONMap decodes text whose top level must be an object and returns
// its backing map (unwrapping an Instance produced by a registered tag).
func DecodeJSONMap(data []byte) (pmap.Map, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return pmap.Empty(), err
	}
	switch t := v.(type) {
	case pmap.Map:
		return t, nil
	case backed:
		return t.Map(), nil
	default:
		return pmap.Empty(), dynamap.Issues{dynamap.Issue{Path: "/", Code: dynamap.CodeParseError, Message: "expected a top-level object"}}
	}
}

func fromJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if tag, inner, ok := taggedObject(t); ok {
			if im, isMap := fromJSONValue(inner).(pmap.Map); isMap {
				im = im.WithMeta(dynamap.MetaTagKey, tag)
				if inst, registered := dynamap.WrapTagged(tag, im); registered {
					return inst
				}
				return im
			}
		}
		m := pmap.Empty()
		for k, val := range t {
			m = m.Assoc(k, fromJSONValue(val))
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromJSONValue(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	default:
		return v
	}
}

func taggedObject(obj map[string]any) (tag string, inner any, ok bool) {
	if len(obj) != 1 {
		return "", nil, false
	}
	for k, v := range obj {
		if strings.HasPrefix(k, jsonTagPrefix) {
			return k[len(jsonTagPrefix):], v, true
		}
	}
	return "", nil, false
}

// EncodeJSON encodes a map-domain value (Instance, pmap.Map, slice, scalar)
// as compact JSON, emitting tagged literals for tagged maps.
func EncodeJSON(v any) ([]byte, error) {
	return json.Marshal(toJSONValue(v))
}

// EncodeJSONIndent is the pretty-printing variant of EncodeJSON.
func EncodeJSONIndent(v any) ([]byte, error) {
	return json.MarshalIndent(toJSONValue(v), "", "  ")
}

func toJSONValue(v any) any {
	switch t := v.(type) {
	case pmap.Map:
		obj := make(map[string]any, t.Len())
		t.Range(func(k string, val any) bool {
			obj[k] = toJSONValue(val)
			return true
		})
		if tag, ok := t.MetaValue(dynamap.MetaTagKey); ok {
			if ts, isStr := tag.(string); isStr {
				return map[string]any{jsonTagPrefix + ts: obj}
			}
		}
		return obj
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toJSONValue(e)
		}
		return out
	default:
		if b, ok := v.(backed); ok {
			return toJSONValue(b.Map())
		}
		return v
	}
}
