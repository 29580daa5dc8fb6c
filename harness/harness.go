package harness

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned when looking up a name nobody registered.
var ErrUnknown = errors.New("harness: unknown target")

// Func consumes one input and returns a status code. The engine treats any
// return as a completed execution.
type Func func(data []byte) int

// Target is a named harness. Targets must be registered at package
// initialization so that sandbox children, which re-execute the same binary,
// can find them by name.
type Target struct {
	Name string
	fn   Func
}

// Run invokes the harness on data.
func (t *Target) Run(data []byte) int {
	return t.fn(data)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]*Target)
)

// Register adds fn under name. It panics on an empty name, a nil function or
// a duplicate registration.
func Register(name string, fn Func) *Target {
	if name == "" || fn == nil {
		panic("harness: Register needs a name and a function")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("harness: Register called twice for %q", name))
	}
	t := &Target{Name: name, fn: fn}
	registry[name] = t
	return t
}

// Lookup returns the target registered under name.
func Lookup(name string) (*Target, error) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return t, nil
}

// Names lists registered targets in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
