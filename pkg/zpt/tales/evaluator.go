package tales

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// Evaluator evaluates TALES expressions against an expression context.
// An expression with no applicable result evaluates to Default.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, ec *ExpressionContext) (any, error)
}

// BuiltinFunc computes the value of a builtin root name.
type BuiltinFunc func(ec *ExpressionContext) any

// PrefixFunc evaluates the body of an expression carrying a registered
// prefix, for example the "a/b" of "path:a/b".
type PrefixFunc func(ctx context.Context, body string, ec *ExpressionContext) (any, error)

// StandardEvaluator implements the path, string, not, exists, nocall,
// expr, local, global, defined, structure and pipe expression types.
type StandardEvaluator struct {
	strict    bool
	builtins  map[string]BuiltinFunc
	prefixes  map[string]PrefixFunc
	accessors *Accessors
	functions FunctionRegistry
	logger    *slog.Logger

	parsed sync.Map // expr: source -> ExpressionNode
}

// Option configures a StandardEvaluator.
type Option func(*StandardEvaluator)

// WithStrictMode makes a path that cannot be resolved an error instead of
// nothing.
func WithStrictMode(strict bool) Option {
	return func(e *StandardEvaluator) { e.strict = strict }
}

// WithBuiltin adds or replaces a builtin root name.
func WithBuiltin(name string, fn BuiltinFunc) Option {
	return func(e *StandardEvaluator) { e.builtins[name] = fn }
}

// WithPrefix adds or replaces an expression type.
func WithPrefix(prefix string, fn PrefixFunc) Option {
	return func(e *StandardEvaluator) { e.prefixes[prefix] = fn }
}

// WithAccessors sets the registry used for path traversal.
func WithAccessors(a *Accessors) Option {
	return func(e *StandardEvaluator) { e.accessors = a }
}

// WithFunctions sets the functions available to expr: expressions.
func WithFunctions(r FunctionRegistry) Option {
	return func(e *StandardEvaluator) { e.functions = r }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *StandardEvaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator with the standard builtins and
// expression types.
func NewEvaluator(opts ...Option) *StandardEvaluator {
	e := &StandardEvaluator{
		builtins:  defaultBuiltins(),
		accessors: NewAccessors(),
		functions: GetDefaultFunctionRegistry(),
		logger:    slog.New(slog.DiscardHandler),
	}
	e.prefixes = map[string]PrefixFunc{
		"path":   e.pathPrefix,
		"string": e.stringPrefix,
		"not":    e.notPrefix,
		"exists": e.existsPrefix,
		"nocall": e.nocallPrefix,
		"expr":   e.exprPrefix,

		"local":     e.scopedPathPrefix(localOnly),
		"global":    e.scopedPathPrefix(globalOnly),
		"defined":   e.scopedPathPrefix(definedOnly),
		"structure": e.structurePrefix,
		"pipe":      e.pipePrefix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultBuiltins() map[string]BuiltinFunc {
	return map[string]BuiltinFunc{
		"here":    func(ec *ExpressionContext) any { return ec.Model },
		"repeat":  func(ec *ExpressionContext) any { return ec.Repetitions },
		"options": func(ec *ExpressionContext) any { return ec.KeywordOptions },
		"nothing": func(*ExpressionContext) any { return nil },
		"default": func(*ExpressionContext) any { return Default },
		"attrs":   attributesOf,
		"template": func(ec *ExpressionContext) any {
			return ec.Template
		},
		"error": func(ec *ExpressionContext) any {
			if ec.Error == nil {
				return nil
			}
			return ec.Error
		},
	}
}

func attributesOf(ec *ExpressionContext) any {
	attrs := map[string]any{}
	if ec.CurrentNode == nil {
		return attrs
	}
	for _, a := range ec.CurrentNode.Attributes {
		attrs[a.QualifiedName()] = a.Value
	}
	return attrs
}

// Evaluate evaluates expression. Failures are returned as *EvaluationError.
func (e *StandardEvaluator) Evaluate(ctx context.Context, expression string, ec *ExpressionContext) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := e.evaluate(ctx, expression, ec)
	if err != nil {
		e.logger.Debug("expression failed", "expression", expression, "error", err)
		var evalErr *EvaluationError
		if errors.As(err, &evalErr) {
			return nil, err
		}
		return nil, NewEvaluationError(expression, err)
	}
	return v, nil
}

var prefixRegex = regexp.MustCompile(`^([a-z][a-z0-9_-]*):`)

func (e *StandardEvaluator) splitPrefix(expression string) (PrefixFunc, string, bool) {
	m := prefixRegex.FindStringSubmatch(expression)
	if m == nil {
		return nil, "", false
	}
	fn, ok := e.prefixes[m[1]]
	if !ok {
		return nil, "", false
	}
	return fn, expression[len(m[0]):], true
}

func (e *StandardEvaluator) evaluate(ctx context.Context, expression string, ec *ExpressionContext) (any, error) {
	expression = strings.TrimSpace(expression)
	if fn, body, ok := e.splitPrefix(expression); ok {
		return fn(ctx, body, ec)
	}
	return e.evaluatePath(ctx, expression, ec, true)
}

func (e *StandardEvaluator) pathPrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	return e.evaluatePath(ctx, body, ec, true)
}

func (e *StandardEvaluator) nocallPrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	return e.evaluatePath(ctx, body, ec, false)
}

func (e *StandardEvaluator) notPrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	v, err := e.evaluate(ctx, body, ec)
	if err != nil {
		return nil, err
	}
	return !IsTruthy(v), nil
}

func (e *StandardEvaluator) existsPrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	alternates := strings.Split(body, "|")
	for i, alt := range alternates {
		alternates[i] = strings.TrimSpace(alt)
		if alternates[i] == "" {
			return nil, NewSyntaxError("empty path alternative", body, 0)
		}
	}
	for _, alt := range alternates {
		_, err := e.traverse(alt, ec, false)
		if err == nil {
			return true, nil
		}
		if !IsPathError(err) {
			return nil, err
		}
	}
	return false, nil
}

// evaluatePath evaluates "a/b | c/d" alternates in order. An alternate
// that fails to resolve falls through to the next. An alternate with an
// expression prefix is evaluated as that expression type.
func (e *StandardEvaluator) evaluatePath(ctx context.Context, expression string, ec *ExpressionContext, call bool) (any, error) {
	return e.evaluatePathFrom(ctx, expression, ec, call, e.resolveRoot)
}

// rootResolver finds the value of the first name of a path.
type rootResolver func(name string, ec *ExpressionContext) (any, bool)

func (e *StandardEvaluator) evaluatePathFrom(ctx context.Context, expression string, ec *ExpressionContext, call bool, root rootResolver) (any, error) {
	alternates := strings.Split(expression, "|")
	for i, alt := range alternates {
		alternates[i] = strings.TrimSpace(alt)
		if alternates[i] == "" {
			return nil, NewSyntaxError("empty path alternative", expression, 0)
		}
	}

	var lastErr error
	for _, alt := range alternates {
		if fn, body, ok := e.splitPrefix(alt); ok {
			return fn(ctx, body, ec)
		}
		v, err := e.traverseFrom(alt, ec, call, root)
		if err == nil {
			return v, nil
		}
		if !IsPathError(err) {
			return nil, err
		}
		lastErr = err
	}
	if e.strict {
		return nil, lastErr
	}
	return nil, nil
}

// traverse walks a single slash-separated path.
func (e *StandardEvaluator) traverse(path string, ec *ExpressionContext, call bool) (any, error) {
	return e.traverseFrom(path, ec, call, e.resolveRoot)
}

func (e *StandardEvaluator) traverseFrom(path string, ec *ExpressionContext, call bool, root rootResolver) (any, error) {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if strings.HasPrefix(seg, "?") {
			v, ok := e.resolveRoot(seg[1:], ec)
			if !ok {
				return nil, NewPathError(path, seg, "variable not found")
			}
			seg = FormatValue(v)
		}
		if seg == "" {
			return nil, NewSyntaxError("empty path segment", path, 0)
		}
		segments[i] = seg
	}

	cur, ok := root(segments[0], ec)
	if !ok {
		return nil, NewPathError(path, segments[0], "name not found")
	}

	for _, seg := range segments[1:] {
		v, err := callIfFunc(cur)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, NewPathError(path, seg, "parent is nothing")
		}
		next, ok := e.accessors.Get(v, seg)
		if !ok {
			return nil, NewPathError(path, seg, "member not found")
		}
		cur = next
	}

	if call {
		return callIfFunc(cur)
	}
	return cur, nil
}

// resolveRoot resolves the first name of a path: builtins, then local and
// global definitions, then members of the model.
func (e *StandardEvaluator) resolveRoot(name string, ec *ExpressionContext) (any, bool) {
	if fn, ok := e.builtins[name]; ok {
		return fn(ec), true
	}
	if v, ok := ec.Lookup(name); ok {
		return v, true
	}
	if ec.Model != nil {
		return e.accessors.Get(ec.Model, name)
	}
	return nil, false
}

var interpolationName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)

// stringPrefix interpolates $name and ${path}; $$ is a literal dollar.
func (e *StandardEvaluator) stringPrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}

		rest := body[i+1:]
		switch {
		case strings.HasPrefix(rest, "$"):
			b.WriteByte('$')
			i += 2
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return nil, NewSyntaxError("unterminated ${", body, i)
			}
			v, err := e.evaluatePath(ctx, rest[1:end], ec, true)
			if err != nil {
				return nil, err
			}
			b.WriteString(FormatValue(v))
			i += end + 2
		default:
			name := interpolationName.FindString(rest)
			if name == "" {
				b.WriteByte('$')
				i++
				continue
			}
			v, err := e.evaluatePath(ctx, name, ec, true)
			if err != nil {
				return nil, err
			}
			b.WriteString(FormatValue(v))
			i += len(name) + 1
		}
	}
	return b.String(), nil
}

func (e *StandardEvaluator) exprPrefix(ctx context.Context, body string, ec *ExpressionContext) (any, error) {
	var node ExpressionNode
	if cached, ok := e.parsed.Load(body); ok {
		node = cached.(ExpressionNode)
	} else {
		parsed, err := ParseExpression(body)
		if err != nil {
			return nil, err
		}
		e.parsed.Store(body, parsed)
		node = parsed
	}

	env := &exprEnv{
		functions: e.functions,
		accessors: e.accessors,
		variable: func(name string) (any, error) {
			v, ok := e.resolveRoot(name, ec)
			if !ok {
				if e.strict {
					return nil, NewPathError(name, name, "name not found")
				}
				return nil, nil
			}
			return callIfFunc(v)
		},
	}
	return node.evaluate(env)
}

// callIfFunc calls zero-argument funcs found during traversal so that
// models can expose computed values.
func callIfFunc(v any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverError(r)
		}
	}()
	switch f := v.(type) {
	case func() any:
		return f(), nil
	case func() (any, error):
		return f()
	case func() string:
		return f(), nil
	default:
		return v, nil
	}
}
