package dynamap_test

import (
	"testing"

	dynamap "github.com/reoring/dynamap"
)

func TestIntrospect_ClassifiesFields(t *testing.T) {
	d, err := dynamap.Introspect[User]()
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	var keys []string
	for _, f := range d.Fields() {
		keys = append(keys, f.Key)
	}
	want := []string{"name", "age", "address", "tags", "roles", "attrs", "joined", "source"}
	if len(keys) != len(want) {
		t.Fatalf("field keys: got %v want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("declaration order lost: got %v want %v", keys, want)
		}
	}

	req := d.RequiredKeys()
	if len(req) != 1 || req[0] != "name" {
		t.Fatalf("required subset: got %v", req)
	}

	src, ok := d.Field("source")
	if !ok || !src.Meta {
		t.Fatalf("meta marker lost: %+v", src)
	}
	name, _ := d.Field("name")
	if name.Builder != "WithName" {
		t.Fatalf("builder name derivation: got %q", name.Builder)
	}
}

func TestIntrospect_IsMemoized(t *testing.T) {
	a, _ := dynamap.Introspect[User]()
	b, _ := dynamap.Introspect[User]()
	if a != b {
		t.Fatalf("classification not shared per schema type")
	}
}

func TestIntrospect_RejectsNonStruct(t *testing.T) {
	_, err := dynamap.Introspect[int]()
	iss, ok := dynamap.AsIssues(err)
	if !ok || iss[0].Code != dynamap.CodeBadSchema {
		t.Fatalf("expected bad-schema fault, got %v", err)
	}
}

func TestIntrospect_ShapeOf(t *testing.T) {
	d, _ := dynamap.Introspect[User]()
	cases := []struct {
		name string
		argc int
		want dynamap.Shape
	}{
		{"name", 0, dynamap.ShapeGetter},
		{"source", 0, dynamap.ShapeMetaGetter},
		{"WithName", 1, dynamap.ShapeBuilder},
		{"WithSource", 1, dynamap.ShapeMetaBuilder},
		{"Merge", 1, dynamap.ShapeStructural},
		{"Validate", 0, dynamap.ShapeStructural},
		{"name", 1, dynamap.ShapeUnknown},
		{"frobnicate", 0, dynamap.ShapeUnknown},
	}
	for _, c := range cases {
		if got := d.ShapeOf(c.name, c.argc); got != c.want {
			t.Fatalf("ShapeOf(%q,%d): got %v want %v", c.name, c.argc, got, c.want)
		}
	}

	g, _ := dynamap.Introspect[Greeter]()
	if got := g.ShapeOf("Greeting", 0); got != dynamap.ShapeDefault {
		t.Fatalf("default method shape: got %v", got)
	}
}

type skipAndRename struct {
	Kept    string `dyn:"kept_key"`
	Ignored string `dyn:"-"`
	Plain   string
}

func TestIntrospect_TagResolution(t *testing.T) {
	d, err := dynamap.Introspect[skipAndRename]()
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if _, ok := d.Field("kept_key"); !ok {
		t.Fatalf("renamed key missing")
	}
	if _, ok := d.Field("plain"); !ok {
		t.Fatalf("untagged field should map to its lower-camel name")
	}
	if len(d.Fields()) != 2 {
		t.Fatalf("skipped field still classified: %v", d.Fields())
	}
}

type dupKeys struct {
	A string `dyn:"x"`
	B string `dyn:"x"`
}

func TestIntrospect_RejectsDuplicateKeys(t *testing.T) {
	if _, err := dynamap.Introspect[dupKeys](); err == nil {
		t.Fatalf("expected duplicate-key fault")
	}
}
