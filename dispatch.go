package dynamap

import (
	"context"
	"fmt"
	"io"
)

// Invoke is the dynamic dispatcher: it decides what an invocation means from
// the accessor's classified shape, in priority order — default-bodied methods
// first, then builder shape, then the fixed structural operations, then
// getters. Everything except a required field resolving to null and an
// undeclared name is total.
func (in Instance[T]) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	d := descriptorFor[T]()
	switch d.ShapeOf(name, len(args)) {
	case ShapeDefault:
		return d.defaults[name](in)
	case ShapeBuilder, ShapeMetaBuilder:
		return in.withField(d.byBuilder[name], args[0]), nil
	case ShapeStructural:
		return in.invokeStructural(ctx, name, args)
	case ShapeGetter, ShapeMetaGetter:
		return in.Field(name)
	default:
		return nil, singleIssue("/"+name, CodeUnknownField, fmt.Sprintf("no accessor %q with %d argument(s) declared on %s", name, len(args), d.schemaType))
	}
}

func (in Instance[T]) invokeStructural(ctx context.Context, name string, args []any) (any, error) {
	switch name {
	case "Map":
		return in.m, nil
	case "SchemaType":
		return in.SchemaType(), nil
	case "String":
		return in.String(), nil
	case "FormattedString":
		return in.FormattedString()
	case "PrettyPrint":
		w, ok := argAt[io.Writer](args, 0)
		if !ok {
			return nil, singleIssue("/", CodeMismatch, "PrettyPrint requires an io.Writer argument")
		}
		return nil, in.PrettyPrint(w)
	case "Merge", "Intersect", "Subtract":
		other, ok := argAt[Instance[T]](args, 0)
		if !ok {
			return nil, singleIssue("/", CodeWrongSchema, fmt.Sprintf("%s requires an instance of the same schema", name))
		}
		switch name {
		case "Merge":
			return in.Merge(other), nil
		case "Intersect":
			return in.Intersect(other), nil
		default:
			return in.Subtract(other), nil
		}
	case "Validate":
		return in.Validate(ctx)
	case "Equal":
		if len(args) != 1 {
			return nil, singleIssue("/", CodeMismatch, "Equal requires one argument")
		}
		return in.Equal(args[0]), nil
	default:
		return nil, singleIssue("/"+name, CodeUnknownField, "unhandled structural operation")
	}
}

func argAt[A any](args []any, i int) (A, bool) {
	var zero A
	if i >= len(args) {
		return zero, false
	}
	a, ok := args[i].(A)
	return a, ok
}
