package dynamap

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/reoring/dynamap/pmap"
)

// MetaTagKey is the metadata entry carrying a backing value's schema tag.
// Builders, diff operations and Wrap propagate it so a value decoded later can
// recover its schema without being told explicitly.
const MetaTagKey = "tag"

type tagEntry struct {
	rt   reflect.Type
	tag  string
	wrap func(pmap.Map) any
}

// Process-wide tag registry, initialized empty at startup and mutated only by
// explicit register/deregister calls. Concurrent register/deregister during an
// active decode/encode is undefined; each change is one atomic operation.
var (
	tagMu     sync.RWMutex
	tagByType = map[reflect.Type]*tagEntry{}
	typeByTag = map[string]*tagEntry{}
)

// RegisterTag binds schema type T to a textual tag so that the codec boundary
// can decode tagged literals into Instances of T and emit the tag when
// encoding them. Re-registering the same binding is a no-op; a conflicting
// binding is an error.
func RegisterTag[T any](tag string) error {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	tagMu.Lock()
	defer tagMu.Unlock()
	if e, ok := tagByType[rt]; ok {
		if e.tag == tag {
			return nil
		}
		return singleIssue("/", CodeBadTag, fmt.Sprintf("%s is already registered as %q", rt, e.tag))
	}
	if e, ok := typeByTag[tag]; ok {
		return singleIssue("/", CodeBadTag, fmt.Sprintf("tag %q is already bound to %s", tag, e.rt))
	}
	e := &tagEntry{rt: rt, tag: tag, wrap: func(m pmap.Map) any { return Wrap[T](m) }}
	tagByType[rt] = e
	typeByTag[tag] = e
	return nil
}

// DeregisterTag removes T's tag binding, if any.
func DeregisterTag[T any]() {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	tagMu.Lock()
	defer tagMu.Unlock()
	if e, ok := tagByType[rt]; ok {
		delete(typeByTag, e.tag)
		delete(tagByType, rt)
	}
}

// TagFor returns the tag registered for a schema type.
func TagFor(rt reflect.Type) (string, bool) {
	tagMu.RLock()
	defer tagMu.RUnlock()
	e, ok := tagByType[rt]
	if !ok {
		return "", false
	}
	return e.tag, true
}

// WrapTagged wraps m as an Instance of the schema registered under tag. The
// second result is false when the tag is unknown; callers then keep the raw
// map (with the tag preserved in its metadata).
func WrapTagged(tag string, m pmap.Map) (any, bool) {
	tagMu.RLock()
	e, ok := typeByTag[tag]
	tagMu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.wrap(m), true
}
