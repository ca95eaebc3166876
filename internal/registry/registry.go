// Package registry is a concurrent name-keyed lookup table.
package registry

import (
	"slices"

	"github.com/alphadose/haxmap"
)

// Registry maps names to values and is safe for concurrent use.
type Registry[T any] interface {
	// Get returns the value registered under name.
	//
	// Returns:
	//   - T: The registered value, or the zero value of T.
	//   - bool: Whether name was registered.
	Get(name string) (T, bool)
	// Add registers value under name, replacing any previous value.
	Add(name string, value T)
	// GetOrAdd returns the value registered under name. When there is none,
	// it calls value, registers the result and returns it.
	//
	// Parameters:
	//   - name: The name to look up.
	//   - value: Builds the value when name is not registered yet.
	//
	// Returns:
	//   - T: The registered or newly built value.
	//   - bool: True when the value was already registered.
	GetOrAdd(name string, value func() T) (T, bool)
	// Del removes name. Removing a missing name does nothing.
	Del(name string)
	// Names returns the registered names in sorted order.
	Names() []string
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

// New creates an empty registry backed by a haxmap.
//
// Returns:
//   - Registry[T]: A registry holding values of type T.
func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

func (r *registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

func (r *registry[T]) Del(name string) {
	r.values.Del(name)
}

func (r *registry[T]) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(name string, _ T) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}
