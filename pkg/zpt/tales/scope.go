package tales

import "sort"

// Scope is one layer of a name→value chain. Lookups fall through to the
// parent; writes only ever touch the receiving layer.
type Scope[T any] struct {
	parent *Scope[T]
	values map[string]T
}

// NewScope creates a scope layered over parent, which may be nil.
func NewScope[T any](parent *Scope[T]) *Scope[T] {
	return &Scope[T]{parent: parent}
}

// Parent returns the enclosing scope.
func (s *Scope[T]) Parent() *Scope[T] { return s.parent }

// Get looks name up in this scope and then its ancestors.
func (s *Scope[T]) Get(name string) (T, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[name]; ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Has reports whether name is visible from this scope.
func (s *Scope[T]) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set binds name in this layer only.
func (s *Scope[T]) Set(name string, v T) {
	if s.values == nil {
		s.values = make(map[string]T)
	}
	s.values[name] = v
}

// Own reports whether name is bound in this layer, ignoring ancestors.
func (s *Scope[T]) Own(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Names returns every visible name, sorted.
func (s *Scope[T]) Names() []string {
	seen := make(map[string]struct{})
	for cur := s; cur != nil; cur = cur.parent {
		for k := range cur.values {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// GetValue lets a scope be traversed by path expressions.
func (s *Scope[T]) GetValue(name string) (any, bool) {
	v, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	return v, true
}
