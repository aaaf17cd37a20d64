package dynamap

import "github.com/reoring/dynamap/pmap"

// Merge combines two instances field-wise, right-biased: for every field
// present in either map the result takes other's value unless that value is
// null, in which case it keeps the receiver's. Implemented as a merge-with
// fold, not via the diff primitive.
func (in Instance[T]) Merge(other Instance[T]) Instance[T] {
	merged := in.m.MergeWith(func(a, b any) any {
		if b == nil {
			return a
		}
		return b
	}, other.m)
	return Wrap[T](in.retag(merged))
}

// Subtract returns the fields present in the receiver that differ from or are
// absent in other, as a new Instance of the receiver's schema.
func (in Instance[T]) Subtract(other Instance[T]) Instance[T] {
	onlyA, _, _ := in.m.Diff3(other.m)
	return Wrap[T](in.retag(onlyA))
}

// Intersect returns the fields with equal values in both instances.
func (in Instance[T]) Intersect(other Instance[T]) Instance[T] {
	_, _, shared := in.m.Diff3(other.m)
	return Wrap[T](in.retag(shared))
}

// retag propagates the receiver's type tag onto a derived map so the result
// still serializes to a tagged literal.
func (in Instance[T]) retag(out pmap.Map) pmap.Map {
	if tag, ok := in.m.MetaValue(MetaTagKey); ok {
		if _, has := out.MetaValue(MetaTagKey); !has {
			return out.WithMeta(MetaTagKey, tag)
		}
	}
	return out
}
