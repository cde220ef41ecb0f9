package tales

import (
	"reflect"
	"strconv"
	"sync"
)

// ValueProvider is implemented by values that expose named members to
// path expressions.
type ValueProvider interface {
	GetValue(name string) (any, bool)
}

// AccessorFunc reads the member name from target.
type AccessorFunc func(target any, name string) (any, bool)

// Accessors is the registry path traversal consults for values that are
// neither maps, slices nor ValueProviders. Accessors are registered per
// concrete type, typically at startup.
type Accessors struct {
	mu     sync.RWMutex
	byType map[reflect.Type]AccessorFunc
}

// NewAccessors creates an empty registry.
func NewAccessors() *Accessors {
	return &Accessors{byType: make(map[reflect.Type]AccessorFunc)}
}

// Register adds a typed accessor for T to the registry.
func Register[T any](a *Accessors, fn func(target T, name string) (any, bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byType[reflect.TypeFor[T]()] = func(target any, name string) (any, bool) {
		t, ok := target.(T)
		if !ok {
			return nil, false
		}
		return fn(t, name)
	}
}

// Get reads member name of target.
func (a *Accessors) Get(target any, name string) (any, bool) {
	if target == nil {
		return nil, false
	}

	if a != nil {
		a.mu.RLock()
		fn, ok := a.byType[reflect.TypeOf(target)]
		a.mu.RUnlock()
		if ok {
			return fn(target, name)
		}
	}

	switch v := target.(type) {
	case ValueProvider:
		return v.GetValue(name)
	case map[string]any:
		val, ok := v[name]
		return val, ok
	case map[string]string:
		val, ok := v[name]
		return val, ok
	case map[string]int:
		val, ok := v[name]
		return val, ok
	case map[string]bool:
		val, ok := v[name]
		return val, ok
	case map[string]float64:
		val, ok := v[name]
		return val, ok
	case map[any]any:
		val, ok := v[name]
		return val, ok
	}

	if name == "length" {
		if n, ok := lengthOf(target); ok {
			return n, true
		}
	}

	index, err := strconv.Atoi(name)
	if err != nil {
		return nil, false
	}
	return indexOf(target, index)
}

func lengthOf(target any) (int, bool) {
	switch v := target.(type) {
	case string:
		return len(v), true
	case []any:
		return len(v), true
	case []string:
		return len(v), true
	case []int:
		return len(v), true
	case []map[string]any:
		return len(v), true
	}
	return 0, false
}

// indexOf supports Python-style negative indices.
func indexOf(target any, index int) (any, bool) {
	switch v := target.(type) {
	case []any:
		return pick(v, index)
	case []string:
		return pick(v, index)
	case []int:
		return pick(v, index)
	case []float64:
		return pick(v, index)
	case []bool:
		return pick(v, index)
	case []map[string]any:
		return pick(v, index)
	}
	return nil, false
}

func pick[T any](s []T, index int) (any, bool) {
	if index < 0 {
		index = len(s) + index
	}
	if index < 0 || index >= len(s) {
		return nil, false
	}
	return s[index], true
}
