package dynamap

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/reoring/dynamap/internal/shape"
	"github.com/reoring/dynamap/pmap"
)

// selfValidator lets the validator recurse into nested handles without
// knowing their schema type parameter.
type selfValidator interface {
	validateInstance(ctx context.Context) error
}

func (in Instance[T]) validateInstance(ctx context.Context) error {
	_, err := in.Validate(ctx)
	return err
}

// Validate resolves every declared field through the same cache normal reads
// use and checks the resolved values against the declared shapes. It collects
// every missing required field and every mismatched field rather than failing
// fast. On success it returns the unchanged Instance so calls can chain.
func (in Instance[T]) Validate(ctx context.Context) (Instance[T], error) {
	d := descriptorFor[T]()
	var iss Issues
	for _, f := range d.fields {
		if f.Meta {
			continue
		}
		v, null := in.resolve(f)
		if null {
			if f.Required {
				iss = AppendIssues(iss, Issue{
					Path:    "/" + f.Key,
					Code:    CodeRequired,
					Message: fmt.Sprintf("required field %s was null", f.Key),
				})
			}
			continue
		}
		iss = AppendIssues(iss, checkShape(ctx, "/"+f.Key, v, f.spec)...)
	}
	if len(iss) > 0 {
		return in, iss
	}
	return in, nil
}

// checkShape verifies one resolved value against a declared shape, recursing
// through optionals, nested instances, and element types. Null values are
// handled by the caller (only required-ness makes null a fault).
func checkShape(ctx context.Context, path string, v any, sp *shape.Spec) Issues {
	if v == nil {
		return nil
	}
	switch sp.Kind {
	case shape.Any:
		return nil
	case shape.Optional:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || !rv.Type().AssignableTo(sp.Type) {
			return mismatch(path, sp.Type, v)
		}
		if rv.IsNil() {
			return nil
		}
		return checkShape(ctx, path, rv.Elem().Interface(), sp.Elem)
	case shape.Nested:
		if !reflect.TypeOf(v).AssignableTo(sp.Type) {
			return mismatch(path, sp.Type, v)
		}
		// A failure inside the nested instance is reported as a mismatch on
		// this field, not surfaced as separate top-level faults.
		if sv, ok := v.(selfValidator); ok {
			if err := sv.validateInstance(ctx); err != nil {
				return Issues{Issue{
					Path:     path,
					Code:     CodeMismatch,
					Message:  fmt.Sprintf("nested %s failed validation: %v", shape.Name(sp.Type), err),
					Expected: shape.Name(sp.Type),
					Actual:   shape.Of(v),
					Cause:    err,
				}}
			}
		}
		return nil
	case shape.List:
		return checkList(ctx, path, v, sp)
	case shape.Set:
		return checkSet(ctx, path, v, sp)
	case shape.MapKind:
		return checkMap(ctx, path, v, sp)
	default:
		if reflect.TypeOf(v).AssignableTo(sp.Type) {
			return nil
		}
		return mismatch(path, sp.Type, v)
	}
}

func checkList(ctx context.Context, path string, v any, sp *shape.Spec) Issues {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return mismatch(path, sp.Type, v)
	}
	var iss Issues
	for i := 0; i < rv.Len(); i++ {
		iss = append(iss, checkShape(ctx, path+"/"+strconv.Itoa(i), rv.Index(i).Interface(), sp.Elem)...)
	}
	// a loose []any container with no element faults still fails the
	// container check (e.g. a null element in a non-nillable element type)
	if !rv.Type().AssignableTo(sp.Type) && len(iss) == 0 {
		return mismatch(path, sp.Type, v)
	}
	return iss
}

func checkSet(ctx context.Context, path string, v any, sp *shape.Spec) Issues {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if !rv.Type().AssignableTo(sp.Type) {
			return mismatch(path, sp.Type, v)
		}
		var iss Issues
		for _, k := range rv.MapKeys() {
			kv := k.Interface()
			iss = append(iss, checkShape(ctx, path+"/"+fmt.Sprint(kv), kv, sp.Elem)...)
		}
		return iss
	case reflect.Slice:
		// loose fallback: the conversion could not build the declared set
		var iss Issues
		for i := 0; i < rv.Len(); i++ {
			iss = append(iss, checkShape(ctx, path+"/"+strconv.Itoa(i), rv.Index(i).Interface(), sp.Elem)...)
		}
		if len(iss) == 0 {
			return mismatch(path, sp.Type, v)
		}
		return iss
	default:
		return mismatch(path, sp.Type, v)
	}
}

func checkMap(ctx context.Context, path string, v any, sp *shape.Spec) Issues {
	if m, ok := v.(pmap.Map); ok {
		// loose fallback: report per-entry faults where determinable
		var iss Issues
		m.Range(func(k string, val any) bool {
			iss = append(iss, checkShape(ctx, path+"/"+k, toDeclared(val, sp.Elem), sp.Elem)...)
			return true
		})
		if len(iss) == 0 {
			return mismatch(path, sp.Type, v)
		}
		return iss
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || !rv.Type().AssignableTo(sp.Type) {
		return mismatch(path, sp.Type, v)
	}
	var iss Issues
	for _, k := range rv.MapKeys() {
		kp := path + "/" + fmt.Sprint(k.Interface())
		iss = append(iss, checkShape(ctx, kp, k.Interface(), sp.Key)...)
		iss = append(iss, checkShape(ctx, kp, rv.MapIndex(k).Interface(), sp.Elem)...)
	}
	return iss
}

func mismatch(path string, want reflect.Type, v any) Issues {
	return Issues{Issue{
		Path:     path,
		Code:     CodeMismatch,
		Message:  fmt.Sprintf("declared %s, found %s", shape.Name(want), shape.Of(v)),
		Expected: shape.Name(want),
		Actual:   shape.Of(v),
	}}
}
