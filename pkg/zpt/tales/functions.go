package tales

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Function represents a callable function in expr: expressions
type Function interface {
	// Call executes the function with the given arguments
	Call(args ...any) (any, error)

	// Name returns the function name
	Name() string

	// MinArgs returns the minimum number of arguments required
	MinArgs() int

	// MaxArgs returns the maximum number of arguments allowed (-1 for unlimited)
	MaxArgs() int
}

// FunctionRegistry manages available functions
type FunctionRegistry interface {
	RegisterFunction(fn Function) error
	GetFunction(name string) (Function, bool)
	ListFunctions() []string
}

// DefaultFunctionRegistry is the default implementation of FunctionRegistry
type DefaultFunctionRegistry struct {
	functions map[string]Function
	mutex     sync.RWMutex
}

// NewFunctionRegistry creates a new, empty function registry
func NewFunctionRegistry() *DefaultFunctionRegistry {
	return &DefaultFunctionRegistry{
		functions: make(map[string]Function),
	}
}

func (r *DefaultFunctionRegistry) RegisterFunction(fn Function) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	name := fn.Name()
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}

	r.functions[name] = fn
	return nil
}

func (r *DefaultFunctionRegistry) GetFunction(name string) (Function, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	fn, exists := r.functions[name]
	return fn, exists
}

func (r *DefaultFunctionRegistry) ListFunctions() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	globalRegistry *DefaultFunctionRegistry
	registryOnce   sync.Once
)

// GetDefaultFunctionRegistry returns the shared registry of builtin functions
func GetDefaultFunctionRegistry() FunctionRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewFunctionRegistry()
		registerBasicFunctions(globalRegistry)
	})
	return globalRegistry
}

// SimpleFunction adapts a plain Go func to Function.
type SimpleFunction struct {
	name    string
	minArgs int
	maxArgs int
	handler func(args ...any) (any, error)
}

func NewSimpleFunction(name string, minArgs, maxArgs int, handler func(args ...any) (any, error)) Function {
	return &SimpleFunction{
		name:    name,
		minArgs: minArgs,
		maxArgs: maxArgs,
		handler: handler,
	}
}

func (f *SimpleFunction) Call(args ...any) (result any, err error) {
	argCount := len(args)
	if argCount < f.minArgs {
		return nil, fmt.Errorf("function %s requires at least %d arguments, got %d", f.name, f.minArgs, argCount)
	}
	if f.maxArgs >= 0 && argCount > f.maxArgs {
		return nil, fmt.Errorf("function %s accepts at most %d arguments, got %d", f.name, f.maxArgs, argCount)
	}

	defer func() {
		if r := recover(); r != nil {
			err = RecoverError(r)
		}
	}()
	return f.handler(args...)
}

func (f *SimpleFunction) Name() string { return f.name }
func (f *SimpleFunction) MinArgs() int { return f.minArgs }
func (f *SimpleFunction) MaxArgs() int { return f.maxArgs }

func registerBasicFunctions(registry *DefaultFunctionRegistry) {
	register := func(name string, minArgs, maxArgs int, handler func(args ...any) (any, error)) {
		_ = registry.RegisterFunction(NewSimpleFunction(name, minArgs, maxArgs, handler))
	}

	register("len", 1, 1, func(args ...any) (any, error) {
		if s, ok := args[0].(string); ok {
			return len([]rune(s)), nil
		}
		items, err := Iterate(args[0])
		if err != nil {
			return nil, NewFunctionError("len", args, err.Error())
		}
		return len(items), nil
	})

	register("empty", 1, 1, func(args ...any) (any, error) {
		return !IsTruthy(args[0]), nil
	})

	register("coalesce", 1, -1, func(args ...any) (any, error) {
		for _, arg := range args {
			if IsTruthy(arg) {
				return arg, nil
			}
		}
		return nil, nil
	})

	register("list", 0, -1, func(args ...any) (any, error) {
		return args, nil
	})

	register("str", 1, 1, func(args ...any) (any, error) {
		return FormatValue(args[0]), nil
	})

	register("int", 1, 1, func(args ...any) (any, error) {
		return toInteger(args[0])
	})

	register("float", 1, 1, func(args ...any) (any, error) {
		if s, ok := args[0].(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, NewFunctionError("float", args, "not a number")
			}
			return f, nil
		}
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, NewFunctionError("float", args, fmt.Sprintf("cannot convert %T", args[0]))
		}
		return f, nil
	})

	register("upper", 1, 1, func(args ...any) (any, error) {
		return strings.ToUpper(FormatValue(args[0])), nil
	})

	register("lower", 1, 1, func(args ...any) (any, error) {
		return strings.ToLower(FormatValue(args[0])), nil
	})

	register("trim", 1, 1, func(args ...any) (any, error) {
		return strings.TrimSpace(FormatValue(args[0])), nil
	})

	register("replace", 3, 3, func(args ...any) (any, error) {
		return strings.ReplaceAll(FormatValue(args[0]), FormatValue(args[1]), FormatValue(args[2])), nil
	})

	register("join", 1, 2, func(args ...any) (any, error) {
		items, err := Iterate(args[0])
		if err != nil {
			return nil, NewFunctionError("join", args, err.Error())
		}
		sep := ""
		if len(args) == 2 {
			sep = FormatValue(args[1])
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, sep), nil
	})

	register("contains", 2, 2, func(args ...any) (any, error) {
		if s, ok := args[0].(string); ok {
			return strings.Contains(s, FormatValue(args[1])), nil
		}
		items, err := Iterate(args[0])
		if err != nil {
			return nil, NewFunctionError("contains", args, err.Error())
		}
		for _, item := range items {
			if evaluateEquals(item, args[1]) {
				return true, nil
			}
		}
		return false, nil
	})

	register("range", 1, 3, func(args ...any) (any, error) {
		return createRange(args...)
	})

	register("round", 1, 1, func(args ...any) (any, error) {
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, NewFunctionError("round", args, "argument must be a number")
		}
		return int(math.Round(f)), nil
	})

	register("floor", 1, 1, func(args ...any) (any, error) {
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, NewFunctionError("floor", args, "argument must be a number")
		}
		return int(math.Floor(f)), nil
	})

	register("ceil", 1, 1, func(args ...any) (any, error) {
		f, ok := toFloat64(args[0])
		if !ok {
			return nil, NewFunctionError("ceil", args, "argument must be a number")
		}
		return int(math.Ceil(f)), nil
	})

	register("sum", 1, 1, func(args ...any) (any, error) {
		items, err := Iterate(args[0])
		if err != nil {
			return nil, NewFunctionError("sum", args, err.Error())
		}
		var total any = 0
		for _, item := range items {
			if total, err = evaluateAddition(total, item); err != nil {
				return nil, NewFunctionError("sum", args, err.Error())
			}
		}
		return total, nil
	})
}

func toInteger(val any) (any, error) {
	switch v := val.(type) {
	case nil:
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), nil
		}
		return nil, NewFunctionError("int", []any{val}, "not a number")
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	if f, ok := toFloat64(val); ok {
		return int(f), nil
	}
	return nil, NewFunctionError("int", []any{val}, fmt.Sprintf("cannot convert %T", val))
}

func createRange(args ...any) (any, error) {
	ints := make([]int, len(args))
	for i, a := range args {
		n, ok := toInt(a)
		if !ok {
			return nil, NewFunctionError("range", args, fmt.Sprintf("argument %d must be an integer", i+1))
		}
		ints[i] = n
	}

	start, end, step := 0, 0, 1
	switch len(ints) {
	case 1:
		end = ints[0]
	case 2:
		start, end = ints[0], ints[1]
	case 3:
		start, end, step = ints[0], ints[1], ints[2]
	}
	if step == 0 {
		return nil, NewFunctionError("range", args, "step cannot be zero")
	}

	var out []any
	if step > 0 {
		for i := start; i < end; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > end; i += step {
			out = append(out, i)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}
