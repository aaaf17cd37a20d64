package dynamap_test

import (
	"reflect"
	"testing"

	dynamap "github.com/reoring/dynamap"
	"github.com/reoring/dynamap/pmap"
)

type invoice struct {
	Total int64 `dyn:"total"`
}

type receipt struct {
	Total int64 `dyn:"total"`
}

func TestRegisterTag_IdempotentAndConflicts(t *testing.T) {
	if err := dynamap.RegisterTag[invoice]("invoice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer dynamap.DeregisterTag[invoice]()

	// same binding again is a no-op
	if err := dynamap.RegisterTag[invoice]("invoice"); err != nil {
		t.Fatalf("re-register same binding: %v", err)
	}
	// same type under a different tag conflicts
	if err := dynamap.RegisterTag[invoice]("bill"); err == nil {
		t.Fatalf("expected conflict for a second tag on the same type")
	}
	// same tag for a different type conflicts
	if err := dynamap.RegisterTag[receipt]("invoice"); err == nil {
		t.Fatalf("expected conflict for a second type under one tag")
	}
}

func TestDeregisterTag_FreesBothDirections(t *testing.T) {
	if err := dynamap.RegisterTag[invoice]("invoice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	dynamap.DeregisterTag[invoice]()

	rt := reflect.TypeOf(invoice{})
	if _, ok := dynamap.TagFor(rt); ok {
		t.Fatalf("tag still resolvable after deregister")
	}
	if _, ok := dynamap.WrapTagged("invoice", pmap.Empty()); ok {
		t.Fatalf("tag still wraps after deregister")
	}

	// the freed tag can be rebound, even to another type
	if err := dynamap.RegisterTag[receipt]("invoice"); err != nil {
		t.Fatalf("rebind freed tag: %v", err)
	}
	dynamap.DeregisterTag[receipt]()
}

func TestWrapTagged(t *testing.T) {
	if err := dynamap.RegisterTag[invoice]("invoice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer dynamap.DeregisterTag[invoice]()

	m := pmap.Empty().Assoc("total", int64(42))
	v, ok := dynamap.WrapTagged("invoice", m)
	if !ok {
		t.Fatalf("registered tag not wrapped")
	}
	inst, ok := v.(dynamap.Instance[invoice])
	if !ok {
		t.Fatalf("wrapped as %T", v)
	}
	if total, _ := dynamap.Get[int64](inst, "total"); total != 42 {
		t.Fatalf("wrapped instance lost data: %v", total)
	}

	if _, ok := dynamap.WrapTagged("unknown", m); ok {
		t.Fatalf("unknown tag should not wrap")
	}
}

func TestWrapStampsRegisteredTag(t *testing.T) {
	if err := dynamap.RegisterTag[invoice]("invoice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer dynamap.DeregisterTag[invoice]()

	in := dynamap.New[invoice]()
	if v, ok := in.MetaValue(dynamap.MetaTagKey); !ok || v != "invoice" {
		t.Fatalf("registered tag not stamped on wrap: %v", v)
	}

	// an already tagged map keeps its own tag
	pre := pmap.Empty().WithMeta(dynamap.MetaTagKey, "other")
	if v, _ := dynamap.Wrap[invoice](pre).MetaValue(dynamap.MetaTagKey); v != "other" {
		t.Fatalf("existing tag overwritten: %v", v)
	}
}
