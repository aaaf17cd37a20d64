// Package pmap adapts a persistent, structurally shared map implementation to
// the small boundary the dynamap runtime needs: keyed access, insert-returning-
// new-value, merge-with, three-way structural diff, and an independent metadata
// side-channel. All operations are pure; no Map value is ever mutated in place.
package pmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
)

// Map pairs immutable field data with an immutable metadata attachment.
// The zero value is an empty map with empty metadata and is safe to use.
type Map struct {
	data *immutable.Map[string, any]
	meta *immutable.Map[string, any]
}

// Empty returns an empty Map.
func Empty() Map { return Map{} }

// FromGo builds a Map from a Go map. Values are stored as given; callers that
// need nested Map values (rather than nested Go maps) build them themselves.
func FromGo(src map[string]any) Map {
	m := newData()
	for k, v := range src {
		m = m.Set(k, v)
	}
	return Map{data: m}
}

func newData() *immutable.Map[string, any] {
	return immutable.NewMap[string, any](nil)
}

func (m Map) dataOrEmpty() *immutable.Map[string, any] {
	if m.data == nil {
		return newData()
	}
	return m.data
}

func (m Map) metaOrEmpty() *immutable.Map[string, any] {
	if m.meta == nil {
		return newData()
	}
	return m.meta
}

// Get returns the value stored under key and whether the key is present.
func (m Map) Get(key string) (any, bool) {
	if m.data == nil {
		return nil, false
	}
	return m.data.Get(key)
}

// Assoc returns a new Map with key set to value. Metadata is carried over.
func (m Map) Assoc(key string, value any) Map {
	return Map{data: m.dataOrEmpty().Set(key, value), meta: m.meta}
}

// Len returns the number of field entries.
func (m Map) Len() int {
	if m.data == nil {
		return 0
	}
	return m.data.Len()
}

// Keys returns the field keys in ascending order for deterministic iteration.
func (m Map) Keys() []string {
	if m.data == nil {
		return nil
	}
	ks := make([]string, 0, m.data.Len())
	itr := m.data.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Range calls fn for every entry in ascending key order. It stops early when
// fn returns false.
func (m Map) Range(fn func(key string, value any) bool) {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if !fn(k, v) {
			return
		}
	}
}

// MergeWith combines m and other into a new Map. For keys present in both,
// the value is fn(m's value, other's value); otherwise the present value is
// taken. The result keeps m's metadata.
func (m Map) MergeWith(fn func(a, b any) any, other Map) Map {
	out := m.dataOrEmpty()
	other.Range(func(k string, bv any) bool {
		if av, ok := m.Get(k); ok {
			out = out.Set(k, fn(av, bv))
		} else {
			out = out.Set(k, bv)
		}
		return true
	})
	return Map{data: out, meta: m.meta}
}

// Diff3 decomposes m and other into (only-in-m, only-in-other, shared-equal).
// Entries present on both sides with nested Map values recurse, so a partially
// shared nested map contributes its shared part to the third component and its
// divergent parts to the first two. Results carry no metadata.
func (m Map) Diff3(other Map) (onlyA, onlyB, shared Map) {
	oa, ob, sh := newData(), newData(), newData()
	m.Range(func(k string, av any) bool {
		bv, ok := other.Get(k)
		if !ok {
			oa = oa.Set(k, av)
			return true
		}
		am, aIsMap := av.(Map)
		bm, bIsMap := bv.(Map)
		if aIsMap && bIsMap {
			subA, subB, subS := am.Diff3(bm)
			if subA.Len() > 0 {
				oa = oa.Set(k, subA)
			}
			if subB.Len() > 0 {
				ob = ob.Set(k, subB)
			}
			if subS.Len() > 0 {
				sh = sh.Set(k, subS)
			}
			return true
		}
		if equalValue(av, bv) {
			sh = sh.Set(k, av)
		} else {
			oa = oa.Set(k, av)
			ob = ob.Set(k, bv)
		}
		return true
	})
	other.Range(func(k string, bv any) bool {
		if _, ok := m.Get(k); !ok {
			ob = ob.Set(k, bv)
		}
		return true
	})
	return Map{data: oa}, Map{data: ob}, Map{data: sh}
}

// Meta returns the metadata side-channel as a Map (field data empty-equivalent
// view: the returned Map's entries are the metadata entries).
func (m Map) Meta() Map {
	return Map{data: m.meta}
}

// MetaValue reads one metadata entry.
func (m Map) MetaValue(key string) (any, bool) {
	if m.meta == nil {
		return nil, false
	}
	return m.meta.Get(key)
}

// WithMeta returns a new Map whose metadata has key set to value. Field data
// is shared unchanged.
func (m Map) WithMeta(key string, value any) Map {
	return Map{data: m.data, meta: m.metaOrEmpty().Set(key, value)}
}

// Equal reports structural equality of field data. Metadata is not part of
// value equality.
func (m Map) Equal(other Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	eq := true
	m.Range(func(k string, av any) bool {
		bv, ok := other.Get(k)
		if !ok || !equalValue(av, bv) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Map:
		bv, ok := b.(Map)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// ToGo converts the field data to plain Go values, recursing into nested Map
// and slice values. Metadata is dropped.
func (m Map) ToGo() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(k string, v any) bool {
		out[k] = toGoValue(v)
		return true
	})
	return out
}

func toGoValue(v any) any {
	switch t := v.(type) {
	case Map:
		return t.ToGo()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toGoValue(e)
		}
		return out
	default:
		return v
	}
}

// String renders the map in a compact, key-sorted form. It is meant for
// diagnostics, not serialization.
func (m Map) String() string {
	b := &strings.Builder{}
	b.WriteByte('{')
	first := true
	m.Range(func(k string, v any) bool {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(b, "%s %v", k, v)
		return true
	})
	b.WriteByte('}')
	return b.String()
}
