package dynamap

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/reoring/dynamap/internal/shape"
	"github.com/reoring/dynamap/pmap"
)

// The converter is total and pure: a raw value that cannot be coerced to the
// declared shape is returned untouched and surfaces as a mismatch at
// validation time, never as a getter failure. It never mutates the raw map,
// which is what licenses unconditional caching of its results.

// anyWrapper is implemented by Instance[T]; it lets the converter build a
// nested handle when only the declared reflect.Type is known.
type anyWrapper interface {
	wrapBacking(pmap.Map) any
}

const maxExactFloatInt = int64(1) << 53

func toDeclared(raw any, sp *shape.Spec) any {
	if raw == nil {
		return nil
	}
	switch sp.Kind {
	case shape.Any:
		return raw
	case shape.Optional:
		e := toDeclared(raw, sp.Elem)
		if e == nil {
			return nil
		}
		rv := reflect.ValueOf(e)
		if !rv.Type().AssignableTo(sp.Elem.Type) {
			return raw
		}
		p := reflect.New(sp.Elem.Type)
		p.Elem().Set(rv)
		return p.Interface()
	case shape.Nested:
		if reflect.TypeOf(raw).AssignableTo(sp.Type) {
			return raw
		}
		m, ok := raw.(pmap.Map)
		if !ok {
			return raw
		}
		return wrapNested(m, sp.Type)
	case shape.List:
		return toDeclaredList(raw, sp)
	case shape.Set:
		return toDeclaredSet(raw, sp)
	case shape.MapKind:
		return toDeclaredMap(raw, sp)
	case shape.String:
		if s, ok := raw.(string); ok {
			return reflect.ValueOf(s).Convert(sp.Type).Interface()
		}
		return raw
	case shape.Bool:
		if b, ok := raw.(bool); ok {
			return reflect.ValueOf(b).Convert(sp.Type).Interface()
		}
		return raw
	case shape.Int:
		return coerceInt(raw, sp.Type)
	case shape.Float:
		return coerceFloat(raw, sp.Type)
	case shape.Time:
		switch t := raw.(type) {
		case time.Time:
			return t
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return ts
			}
		}
		return raw
	}
	return raw
}

func wrapNested(m pmap.Map, t reflect.Type) any {
	zero := reflect.New(t).Elem().Interface()
	if w, ok := zero.(anyWrapper); ok {
		return w.wrapBacking(m)
	}
	return m
}

func toDeclaredList(raw any, sp *shape.Spec) any {
	items, ok := raw.([]any)
	if !ok {
		return raw
	}
	elemType := sp.Type.Elem()
	typed := reflect.MakeSlice(sp.Type, 0, len(items))
	loose := make([]any, len(items))
	allFit := true
	for i, it := range items {
		cv := toDeclared(it, sp.Elem)
		loose[i] = cv
		if cv == nil {
			if isNillable(elemType) {
				typed = reflect.Append(typed, reflect.Zero(elemType))
			} else {
				allFit = false
			}
			continue
		}
		rv := reflect.ValueOf(cv)
		if rv.Type().AssignableTo(elemType) {
			typed = reflect.Append(typed, rv)
		} else {
			allFit = false
		}
	}
	if allFit {
		return typed.Interface()
	}
	return loose
}

func toDeclaredSet(raw any, sp *shape.Spec) any {
	items, ok := raw.([]any)
	if !ok {
		return raw
	}
	keyType := sp.Type.Key()
	typed := reflect.MakeMapWithSize(sp.Type, len(items))
	loose := make([]any, len(items))
	allFit := true
	for i, it := range items {
		cv := toDeclared(it, sp.Elem)
		loose[i] = cv
		if cv == nil {
			allFit = false
			continue
		}
		rv := reflect.ValueOf(cv)
		if rv.Type().AssignableTo(keyType) {
			typed.SetMapIndex(rv, reflect.ValueOf(struct{}{}))
		} else {
			allFit = false
		}
	}
	if allFit {
		return typed.Interface()
	}
	return loose
}

func toDeclaredMap(raw any, sp *shape.Spec) any {
	m, ok := raw.(pmap.Map)
	if !ok {
		return raw
	}
	if sp.Key.Kind != shape.String {
		return raw
	}
	typed := reflect.MakeMapWithSize(sp.Type, m.Len())
	valType := sp.Type.Elem()
	allFit := true
	m.Range(func(k string, v any) bool {
		cv := toDeclared(v, sp.Elem)
		if cv == nil {
			if isNillable(valType) {
				typed.SetMapIndex(reflect.ValueOf(k).Convert(sp.Type.Key()), reflect.Zero(valType))
				return true
			}
			allFit = false
			return false
		}
		rv := reflect.ValueOf(cv)
		if !rv.Type().AssignableTo(valType) {
			allFit = false
			return false
		}
		typed.SetMapIndex(reflect.ValueOf(k).Convert(sp.Type.Key()), rv)
		return true
	})
	if allFit {
		return typed.Interface()
	}
	return raw
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// coerceInt applies the narrowest lossless conversion to an integral declared
// type. Non-integral or overflowing values are returned unchanged.
func coerceInt(raw any, t reflect.Type) any {
	var v int64
	switch n := raw.(type) {
	case int64:
		v = n
	case int:
		v = int64(n)
	case int32:
		v = int64(n)
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > float64(maxExactFloatInt) {
			return raw
		}
		v = int64(n)
	default:
		return raw
	}
	rv := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.OverflowInt(v) {
			return raw
		}
		rv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v < 0 || rv.OverflowUint(uint64(v)) {
			return raw
		}
		rv.SetUint(uint64(v))
	default:
		return raw
	}
	return rv.Interface()
}

func coerceFloat(raw any, t reflect.Type) any {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case int64:
		if n > maxExactFloatInt || n < -maxExactFloatInt {
			return raw
		}
		f = float64(n)
	case int:
		f = float64(n)
	default:
		return raw
	}
	rv := reflect.New(t).Elem()
	if rv.OverflowFloat(f) {
		return raw
	}
	rv.SetFloat(f)
	return rv.Interface()
}

// toRaw converts a builder argument into its map-domain form: Instances
// unwrap to their backing maps, times render as RFC 3339, integers widen to
// int64, sets become sorted slices, and Go maps become persistent maps.
func toRaw(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case pmap.Map:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		return t
	case bool:
		return t
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return t
	}
	if b, ok := v.(shape.Backed); ok {
		return b.Map()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return toRaw(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = toRaw(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Elem() == reflect.TypeOf(struct{}{}) {
			elems := make([]any, 0, rv.Len())
			for _, k := range rv.MapKeys() {
				elems = append(elems, toRaw(k.Interface()))
			}
			sort.Slice(elems, func(i, j int) bool {
				return fmt.Sprint(elems[i]) < fmt.Sprint(elems[j])
			})
			return elems
		}
		m := pmap.Empty()
		for _, k := range rv.MapKeys() {
			ks, ok := toRaw(k.Interface()).(string)
			if !ok {
				ks = fmt.Sprint(k.Interface())
			}
			m = m.Assoc(ks, toRaw(rv.MapIndex(k).Interface()))
		}
		return m
	default:
		return v
	}
}
