package tales

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
)

// rootScope limits where the first name of a path may come from.
type rootScope int

const (
	localOnly rootScope = iota
	globalOnly
	definedOnly
)

// scopedPathPrefix returns a path expression type whose root names are
// resolved only from the given variables. Builtins and the model are not
// visible to it.
func (e *StandardEvaluator) scopedPathPrefix(scope rootScope) PrefixFunc {
	var root rootResolver
	switch scope {
	case localOnly:
		root = func(name string, ec *ExpressionContext) (any, bool) {
			return ec.LocalDefinitions.Get(name)
		}
	case globalOnly:
		root = func(name string, ec *ExpressionContext) (any, bool) {
			return ec.GlobalDefinitions.Get(name)
		}
	default:
		root = func(name string, ec *ExpressionContext) (any, bool) {
			return ec.Lookup(name)
		}
	}
	return func(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
		return e.evaluatePathFrom(ctx, body, ec, true, root)
	}
}

// Structure marks a value which content and replace insert as markup,
// even without the "structure" keyword.
type Structure struct {
	Value any
}

// Markup returns the value formatted as markup source.
func (s Structure) Markup() string { return FormatValue(s.Value) }

func (e *StandardEvaluator) structurePrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	v, err := e.evaluate(ctx, body, ec)
	if err != nil || v == nil || IsDefault(v) {
		return v, err
	}
	if _, ok := v.(interface{ Markup() string }); ok {
		return v, nil
	}
	return Structure{Value: v}, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

var pipeRegex = regexp.MustCompile(`(?s)^([a-zA-Z_][a-zA-Z0-9_]*)\s+(.+)$`)

// pipePrefix evaluates "pipe:name expression": the value of the variable
// name is passed to the one-argument function the expression yields.
func (e *StandardEvaluator) pipePrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	m := pipeRegex.FindStringSubmatch(body)
	if m == nil {
		return nil, NewSyntaxError("expected a variable name and a function expression", body, 0)
	}
	source, err := e.evaluatePath(ctx, m[1], ec, true)
	if err != nil {
		return nil, fmt.Errorf("pipe source %s: %w", m[1], err)
	}
	fn, err := e.evaluate(ctx, m[2], ec)
	if err != nil {
		return nil, fmt.Errorf("pipe function %s: %w", m[2], err)
	}
	return callPipe(fn, source)
}

// callPipe applies fn to arg. fn must be a function of one argument
// returning a value, optionally followed by an error.
func callPipe(fn, arg any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverError(r)
		}
	}()
	switch f := fn.(type) {
	case func(any) any:
		return f(arg), nil
	case func(any) (any, error):
		return f(arg)
	case Function:
		return f.Call(arg)
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("pipe target is %T, not a function", fn)
	}
	t := v.Type()
	if t.NumIn() != 1 || t.NumOut() < 1 || t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return nil, fmt.Errorf("pipe target %s must take one argument", t)
	}
	in := reflect.ValueOf(arg)
	if !in.IsValid() {
		in = reflect.Zero(t.In(0))
	}
	if !in.Type().AssignableTo(t.In(0)) {
		if !in.Type().ConvertibleTo(t.In(0)) {
			return nil, fmt.Errorf("pipe target %s cannot take %T", t, arg)
		}
		in = in.Convert(t.In(0))
	}
	out := v.Call([]reflect.Value{in})
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
