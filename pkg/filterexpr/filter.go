// Package filterexpr compiles CEL filter expressions and order_by clauses
// for list requests.
package filterexpr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
)

// ErrInvalid is returned for expressions that do not parse, reference
// unknown fields, or do not evaluate to a boolean.
var ErrInvalid = errors.New("invalid filter expression")

// Msg wraps request DTOs that expose filter and order_by raw inputs.
type Msg interface {
	GetFilter() string
	GetOrderBy() string
}

// ValueKind describes the type of a filterable field.
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindInt        ValueKind = "int"
	KindStringList ValueKind = "string_list"
)

// Schema maps filterable field names to their kinds.
type Schema map[string]ValueKind

// Filter is a compiled expression. A nil *Filter matches everything.
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile type-checks expr against schema. An empty expression yields a nil
// filter and no error.
func Compile(expr string, schema Schema) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := buildEnv(schema)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must be boolean, got %s", ErrInvalid, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against vars.
func (f *Filter) Match(vars map[string]any) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, _, err := f.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", f.expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q did not yield a boolean", ErrInvalid, f.expr)
	}
	return matched, nil
}

// Select returns the items whose variables match the filter, in order.
func Select[T any](f *Filter, items []T, vars func(T) map[string]any) ([]T, error) {
	if f == nil {
		return items, nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := f.Match(vars(item))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func buildEnv(schema Schema) (*cel.Env, error) {
	if len(schema) == 0 {
		return nil, errors.New("filter schema has no fields defined")
	}
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]cel.EnvOption, 0, len(schema)+1)
	for _, name := range names {
		celType, err := celTypeForKind(schema[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		opts = append(opts, cel.Variable(name, celType))
	}
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	return cel.NewEnv(opts...)
}

func celTypeForKind(kind ValueKind) (*cel.Type, error) {
	switch kind {
	case KindString:
		return cel.StringType, nil
	case KindInt:
		return cel.IntType, nil
	case KindStringList:
		return cel.ListType(cel.StringType), nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}
