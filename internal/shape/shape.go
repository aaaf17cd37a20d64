// Package shape classifies declared Go types into the closed set of value
// shapes the conversion and validation layers operate on.
package shape

import (
	"reflect"
	"time"

	"github.com/reoring/dynamap/pmap"
)

// Kind enumerates the declared-type shapes.
type Kind int

const (
	Any Kind = iota
	String
	Bool
	Int
	Float
	Time
	Optional
	List
	Set
	MapKind
	Nested
)

// Backed is implemented by every schema-typed handle: it exposes the backing
// map and the schema's Go type. Classification treats any type implementing
// Backed as a nested schema value.
type Backed interface {
	Map() pmap.Map
	SchemaType() reflect.Type
}

var (
	backedType = reflect.TypeOf((*Backed)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
)

// Spec is the classified form of a declared type. Elem holds the element
// shape for Optional/List/Set and the value shape for MapKind; Key holds the
// key shape for MapKind.
type Spec struct {
	Kind Kind
	Type reflect.Type
	Elem *Spec
	Key  *Spec
}

// Classify derives the Spec for a declared type. It is total: types outside
// the closed set classify as Any and pass through conversion untouched.
func Classify(t reflect.Type) *Spec {
	switch {
	case t == timeType:
		return &Spec{Kind: Time, Type: t}
	case t.Implements(backedType):
		return &Spec{Kind: Nested, Type: t}
	case t == anyType:
		return &Spec{Kind: Any, Type: t}
	}
	switch t.Kind() {
	case reflect.Pointer:
		return &Spec{Kind: Optional, Type: t, Elem: Classify(t.Elem())}
	case reflect.Slice:
		return &Spec{Kind: List, Type: t, Elem: Classify(t.Elem())}
	case reflect.Map:
		if t.Elem() == reflect.TypeOf(struct{}{}) {
			return &Spec{Kind: Set, Type: t, Elem: Classify(t.Key())}
		}
		return &Spec{Kind: MapKind, Type: t, Key: Classify(t.Key()), Elem: Classify(t.Elem())}
	case reflect.String:
		return &Spec{Kind: String, Type: t}
	case reflect.Bool:
		return &Spec{Kind: Bool, Type: t}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Spec{Kind: Int, Type: t}
	case reflect.Float32, reflect.Float64:
		return &Spec{Kind: Float, Type: t}
	default:
		return &Spec{Kind: Any, Type: t}
	}
}

// Name returns a short human name for a declared type, used in mismatch
// reports.
func Name(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// Of returns the runtime shape name of a value, used as the "actual" side of
// mismatch reports.
func Of(v any) string {
	if v == nil {
		return "nil"
	}
	if _, ok := v.(pmap.Map); ok {
		return "map"
	}
	return reflect.TypeOf(v).String()
}
