package dynamap

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/reoring/dynamap/internal/shape"
)

// Shape is the closed classification of a declared accessor. Dispatch decides
// what an invocation means from its shape, never from ad-hoc string matching
// (structural operations are the one fixed-name exception).
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeGetter
	ShapeBuilder
	ShapeMetaGetter
	ShapeMetaBuilder
	ShapeStructural
	ShapeDefault
)

// FieldSpec describes one declared field and its accessor pair.
type FieldSpec struct {
	Key      string       // map key and getter name
	Builder  string       // canonical builder name: With<StructFieldName>
	GoType   reflect.Type // declared value type
	Required bool
	Meta     bool // reads/writes the metadata side-channel instead of field data

	spec  *shape.Spec
	index int
}

// DefaultFunc is a default-bodied accessor: it runs against the Instance
// itself and never touches the backing map through the field machinery.
type DefaultFunc[T any] func(Instance[T]) (any, error)

// WithDefaultMethods is an optional hook a schema type may implement to
// declare default-bodied accessors. The returned map is read once, when the
// schema is first classified.
type WithDefaultMethods[T any] interface {
	DefaultMethods() map[string]DefaultFunc[T]
}

// Descriptor enumerates the classified accessors of one schema type. It is
// computed at most once per type and shared by every Instance; schemas are
// immutable for the process's lifetime so the cache is never invalidated.
type Descriptor struct {
	schemaType reflect.Type
	fields     []*FieldSpec // declaration order, used for deterministic messages
	byKey      map[string]*FieldSpec
	byBuilder  map[string]*FieldSpec
	defaults   map[string]func(any) (any, error)
}

// SchemaType returns the schema's Go type.
func (d *Descriptor) SchemaType() reflect.Type { return d.schemaType }

// Fields returns the declared fields in declaration order.
func (d *Descriptor) Fields() []*FieldSpec {
	out := make([]*FieldSpec, len(d.fields))
	copy(out, d.fields)
	return out
}

// Field returns the field declared under key.
func (d *Descriptor) Field(key string) (*FieldSpec, bool) {
	f, ok := d.byKey[key]
	return f, ok
}

// RequiredKeys returns the keys of required fields in declaration order.
func (d *Descriptor) RequiredKeys() []string {
	var ks []string
	for _, f := range d.fields {
		if f.Required {
			ks = append(ks, f.Key)
		}
	}
	return ks
}

// structuralOps are the framework-level operations dispatched by name.
var structuralOps = map[string]struct{}{
	"Map":             {},
	"SchemaType":      {},
	"String":          {},
	"FormattedString": {},
	"PrettyPrint":     {},
	"Merge":           {},
	"Intersect":       {},
	"Subtract":        {},
	"Validate":        {},
	"Equal":           {},
}

// ShapeOf classifies an invocation by name and argument count, in dispatch
// priority order. Anything not matching a known shape is ShapeUnknown and
// falls through at call time.
func (d *Descriptor) ShapeOf(name string, argc int) Shape {
	if _, ok := d.defaults[name]; ok {
		return ShapeDefault
	}
	if argc == 1 {
		if f, ok := d.byBuilder[name]; ok {
			if f.Meta {
				return ShapeMetaBuilder
			}
			return ShapeBuilder
		}
	}
	if _, ok := structuralOps[name]; ok {
		return ShapeStructural
	}
	if f, ok := d.byKey[name]; ok && argc == 0 {
		if f.Meta {
			return ShapeMetaGetter
		}
		return ShapeGetter
	}
	return ShapeUnknown
}

// process-wide classification cache, populated lazily on first use
var descriptors sync.Map // reflect.Type -> *Descriptor

// Introspect classifies schema type T, memoizing the result for the process
// lifetime. It fails only when T itself is not a usable schema declaration.
func Introspect[T any]() (*Descriptor, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if d, ok := descriptors.Load(rt); ok {
		return d.(*Descriptor), nil
	}
	d, err := buildDescriptor(rt)
	if err != nil {
		return nil, err
	}
	attachDefaults[T](d)
	actual, _ := descriptors.LoadOrStore(rt, d)
	return actual.(*Descriptor), nil
}

// descriptorFor is the internal fast path; a schema type that cannot be
// classified is a programming error, so it panics rather than forcing every
// getter to return a classification error.
func descriptorFor[T any]() *Descriptor {
	d, err := Introspect[T]()
	if err != nil {
		panic(err)
	}
	return d
}

func attachDefaults[T any](d *Descriptor) {
	var zero T
	dm, ok := any(zero).(WithDefaultMethods[T])
	if !ok {
		return
	}
	for name, fn := range dm.DefaultMethods() {
		f := fn
		d.defaults[name] = func(recv any) (any, error) {
			return f(recv.(Instance[T]))
		}
	}
}

func buildDescriptor(rt reflect.Type) (*Descriptor, error) {
	if rt.Kind() != reflect.Struct {
		return nil, singleIssue("/", CodeBadSchema, fmt.Sprintf("schema type must be a struct, got %s", rt.Kind()))
	}
	d := &Descriptor{
		schemaType: rt,
		byKey:      map[string]*FieldSpec{},
		byBuilder:  map[string]*FieldSpec{},
		defaults:   map[string]func(any) (any, error){},
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		key, required, meta, skip := resolveFieldKey(sf)
		if skip {
			continue
		}
		if _, dup := d.byKey[key]; dup {
			return nil, singleIssue("/"+key, CodeBadSchema, fmt.Sprintf("duplicate field key %q on %s", key, rt))
		}
		f := &FieldSpec{
			Key:      key,
			Builder:  "With" + sf.Name,
			GoType:   sf.Type,
			Required: required,
			Meta:     meta,
			spec:     shape.Classify(sf.Type),
			index:    i,
		}
		d.fields = append(d.fields, f)
		d.byKey[key] = f
		d.byBuilder[f.Builder] = f
	}
	return d, nil
}

// resolveFieldKey derives the map key and markers from the `dyn` struct tag.
// An absent tag maps the field under its lower-camel name.
func resolveFieldKey(sf reflect.StructField) (key string, required, meta, skip bool) {
	tag, ok := sf.Tag.Lookup("dyn")
	if !ok {
		return lowerFirst(sf.Name), false, false, false
	}
	parts := strings.Split(tag, ",")
	key = parts[0]
	if key == "-" {
		return "", false, false, true
	}
	if key == "" {
		key = lowerFirst(sf.Name)
	}
	for _, opt := range parts[1:] {
		switch opt {
		case "required":
			required = true
		case "meta":
			meta = true
		}
	}
	return key, required, meta, false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
