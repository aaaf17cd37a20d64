package dynamap_test

import (
	"context"
	"strings"
	"testing"

	dynamap "github.com/reoring/dynamap"
	"github.com/reoring/dynamap/pmap"
)

func TestInvoke_Getter(t *testing.T) {
	ctx := context.Background()
	u, _ := dynamap.New[User]().With("name", "alice")

	v, err := u.Invoke(ctx, "name")
	if err != nil || v != "alice" {
		t.Fatalf("invoke getter: got %v err=%v", v, err)
	}
}

func TestInvoke_RequiredGetterFails(t *testing.T) {
	ctx := context.Background()
	_, err := dynamap.New[User]().Invoke(ctx, "name")
	iss, ok := dynamap.AsIssues(err)
	if !ok || iss[0].Code != dynamap.CodeRequired {
		t.Fatalf("expected required fault, got %v", err)
	}
}

func TestInvoke_Builder(t *testing.T) {
	ctx := context.Background()
	v, err := dynamap.New[User]().Invoke(ctx, "WithName", "alice")
	if err != nil {
		t.Fatalf("invoke builder: %v", err)
	}
	u, ok := v.(dynamap.Instance[User])
	if !ok {
		t.Fatalf("builder returned %T", v)
	}
	if name, _ := dynamap.Get[string](u, "name"); name != "alice" {
		t.Fatalf("builder did not write the field: %q", name)
	}
}

func TestInvoke_MetaBuilderAndGetter(t *testing.T) {
	ctx := context.Background()
	v, err := dynamap.New[User]().Invoke(ctx, "WithSource", "import")
	if err != nil {
		t.Fatalf("invoke meta builder: %v", err)
	}
	u := v.(dynamap.Instance[User])
	if _, ok := u.Map().Get("source"); ok {
		t.Fatalf("meta builder wrote field data")
	}
	got, err := u.Invoke(ctx, "source")
	if err != nil || got != "import" {
		t.Fatalf("meta getter: got %v err=%v", got, err)
	}
}

func TestInvoke_StructuralOps(t *testing.T) {
	ctx := context.Background()
	a, _ := dynamap.New[User]().With("name", "alice")
	b, _ := dynamap.New[User]().With("name", "bob")

	if v, err := a.Invoke(ctx, "Map"); err != nil || !v.(pmap.Map).Equal(a.Map()) {
		t.Fatalf("Map op: %v %v", v, err)
	}
	if v, err := a.Invoke(ctx, "SchemaType"); err != nil || v != a.SchemaType() {
		t.Fatalf("SchemaType op: %v %v", v, err)
	}
	if v, err := a.Invoke(ctx, "Equal", b); err != nil || v != false {
		t.Fatalf("Equal op: %v %v", v, err)
	}
	if v, err := a.Invoke(ctx, "Merge", b); err != nil {
		t.Fatalf("Merge op: %v", err)
	} else if name, _ := dynamap.Get[string](v.(dynamap.Instance[User]), "name"); name != "bob" {
		t.Fatalf("Merge op wrong bias: %q", name)
	}
	if v, err := a.Invoke(ctx, "Validate"); err != nil {
		t.Fatalf("Validate op: %v", err)
	} else if !v.(dynamap.Instance[User]).Equal(a) {
		t.Fatalf("Validate op should return the instance")
	}
	if v, err := a.Invoke(ctx, "String"); err != nil || !strings.Contains(v.(string), "alice") {
		t.Fatalf("String op: %v %v", v, err)
	}
}

func TestInvoke_PrettyPrint(t *testing.T) {
	ctx := context.Background()
	u, _ := dynamap.New[User]().With("name", "alice")
	var sb strings.Builder
	if _, err := u.Invoke(ctx, "PrettyPrint", &sb); err != nil {
		t.Fatalf("PrettyPrint op: %v", err)
	}
	if !strings.Contains(sb.String(), "alice") {
		t.Fatalf("pretty print missing content: %q", sb.String())
	}
}

func TestInvoke_DefaultMethodWinsDispatch(t *testing.T) {
	ctx := context.Background()
	g, _ := dynamap.New[Greeter]().With("name", "alice")
	v, err := g.Invoke(ctx, "Greeting")
	if err != nil || v != "hello alice" {
		t.Fatalf("default method: got %v err=%v", v, err)
	}
}

func TestInvoke_UnknownAccessorFallsThrough(t *testing.T) {
	ctx := context.Background()
	_, err := dynamap.New[User]().Invoke(ctx, "frobnicate")
	iss, ok := dynamap.AsIssues(err)
	if !ok || iss[0].Code != dynamap.CodeUnknownField {
		t.Fatalf("expected unknown-accessor fault, got %v", err)
	}
}

func TestInvoke_WrongSchemaOperand(t *testing.T) {
	ctx := context.Background()
	u, _ := dynamap.New[User]().With("name", "alice")
	g := dynamap.New[Greeter]()
	_, err := u.Invoke(ctx, "Merge", g)
	iss, ok := dynamap.AsIssues(err)
	if !ok || iss[0].Code != dynamap.CodeWrongSchema {
		t.Fatalf("expected wrong-schema fault, got %v", err)
	}
}
