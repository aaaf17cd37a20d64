package dynamap

import (
	"fmt"
	"io"
	"reflect"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/reoring/dynamap/internal/shape"
	"github.com/reoring/dynamap/pmap"
)

// Instance is an immutable pairing of a backing persistent map and a schema
// type. Builders never mutate an Instance; every write yields a new Instance
// over a new map value. The zero value behaves like an Instance over an empty
// map, but reads on it are not cached; prefer New or Wrap.
type Instance[T any] struct {
	m     pmap.Map
	cache *valueCache
}

// resolvedEntry is the tagged cache variant: an entry is either resolved-null
// or resolved-to-value; absence from the cache means unresolved. No identity
// sentinels are involved.
type resolvedEntry struct {
	null bool
	v    any
}

// valueCache memoizes converted getter results for one fixed backing map.
// Racing fills may both compute, but conversion is pure so they agree; the
// first installed entry wins and the loser's result is discarded.
type valueCache struct {
	entries sync.Map // field key -> resolvedEntry
}

// New returns an Instance of T over an empty backing map.
func New[T any]() Instance[T] { return Wrap[T](pmap.Empty()) }

// Wrap projects schema T onto an existing map value. When T has a registered
// tag and the map does not carry one yet, the tag is stamped into the map's
// metadata so the value serializes back to a tagged literal.
func Wrap[T any](m pmap.Map) Instance[T] {
	_ = descriptorFor[T]() // surface schema declaration errors at wrap time
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if tag, ok := TagFor(rt); ok {
		if _, has := m.MetaValue(MetaTagKey); !has {
			m = m.WithMeta(MetaTagKey, tag)
		}
	}
	return Instance[T]{m: m, cache: &valueCache{}}
}

// Map exposes the backing map value.
func (in Instance[T]) Map() pmap.Map { return in.m }

// SchemaType exposes the schema's Go type.
func (in Instance[T]) SchemaType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// String delegates to the backing map.
func (in Instance[T]) String() string { return in.m.String() }

// Equal compares backing maps structurally. The comparison target may be an
// Instance of any schema or a bare map value; anything else is unequal.
func (in Instance[T]) Equal(other any) bool {
	switch o := other.(type) {
	case shape.Backed:
		return in.m.Equal(o.Map())
	case pmap.Map:
		return in.m.Equal(o)
	default:
		return false
	}
}

// FormattedString renders the backing map as indented JSON.
func (in Instance[T]) FormattedString() (string, error) {
	b, err := json.MarshalIndent(in.m.ToGo(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PrettyPrint writes FormattedString plus a trailing newline to w.
func (in Instance[T]) PrettyPrint(w io.Writer) error {
	s, err := in.FormattedString()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s+"\n")
	return err
}

// Field resolves a declared field by key: metadata-marked fields read the
// side-channel, everything else goes through the per-instance cache and the
// converter. A required field resolving to null is the only failure mode
// besides an undeclared key; shape mismatches are deferred to Validate.
func (in Instance[T]) Field(key string) (any, error) {
	d := descriptorFor[T]()
	f, ok := d.byKey[key]
	if !ok {
		return nil, singleIssue("/"+key, CodeUnknownField, fmt.Sprintf("no field %q declared on %s", key, d.schemaType))
	}
	if f.Meta {
		v, _ := in.m.MetaValue(f.Key)
		return v, nil
	}
	v, null := in.resolve(f)
	if null {
		if f.Required {
			return nil, singleIssue("/"+key, CodeRequired, fmt.Sprintf("required field %s was null", key))
		}
		return nil, nil
	}
	return v, nil
}

// resolve returns the converted value for f and whether it resolved to null,
// filling the cache on first use. Repeated reads of one field on one Instance
// always return the same converted value.
func (in Instance[T]) resolve(f *FieldSpec) (any, bool) {
	if in.cache != nil {
		if e, ok := in.cache.entries.Load(f.Key); ok {
			r := e.(resolvedEntry)
			return r.v, r.null
		}
	}
	raw, _ := in.m.Get(f.Key)
	v := toDeclared(raw, f.spec)
	entry := resolvedEntry{null: v == nil, v: v}
	if in.cache != nil {
		stored, _ := in.cache.entries.LoadOrStore(f.Key, entry)
		entry = stored.(resolvedEntry)
	}
	return entry.v, entry.null
}

// Get is the typed getter. A resolved null yields F's zero value; a resolved
// value that does not fit F reports a mismatch for this call (Validate reports
// the same fault against the whole instance).
func Get[F any, T any](in Instance[T], key string) (F, error) {
	var zero F
	v, err := in.Field(key)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	fv, ok := v.(F)
	if !ok {
		want := reflect.TypeOf((*F)(nil)).Elem()
		return zero, Issues{Issue{
			Path:     "/" + key,
			Code:     CodeMismatch,
			Message:  fmt.Sprintf("field %s is %s, not %s", key, shape.Of(v), want),
			Expected: want.String(),
			Actual:   shape.Of(v),
		}}
	}
	return fv, nil
}

// With returns a new Instance whose backing map has key fully replaced by v
// (insert-or-replace, never merge). The receiver is unchanged. Metadata-marked
// fields write the side-channel instead.
func (in Instance[T]) With(key string, v any) (Instance[T], error) {
	d := descriptorFor[T]()
	f, ok := d.byKey[key]
	if !ok {
		return in, singleIssue("/"+key, CodeUnknownField, fmt.Sprintf("no field %q declared on %s", key, d.schemaType))
	}
	return in.withField(f, v), nil
}

func (in Instance[T]) withField(f *FieldSpec, v any) Instance[T] {
	raw := toRaw(v)
	if f.Meta {
		return Instance[T]{m: in.m.WithMeta(f.Key, raw), cache: &valueCache{}}
	}
	return Instance[T]{m: in.m.Assoc(f.Key, raw), cache: &valueCache{}}
}

// MetaValue reads one entry of the metadata side-channel.
func (in Instance[T]) MetaValue(key string) (any, bool) {
	return in.m.MetaValue(key)
}

// WithMetaValue returns a new Instance whose side-channel has key set to v.
func (in Instance[T]) WithMetaValue(key string, v any) Instance[T] {
	return Instance[T]{m: in.m.WithMeta(key, toRaw(v)), cache: &valueCache{}}
}

// wrapBacking lets the converter build nested handles from a declared type.
func (in Instance[T]) wrapBacking(m pmap.Map) any { return Wrap[T](m) }
