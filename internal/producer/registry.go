// Package producer defines item producers and the registry that maps item
// kinds to them.
//
// A producer is a pure function of its parameters. It may block on I/O and
// must honor context cancellation. Ordinary failures (missing file, bad
// parse, failed subprocess) are reported as errors, never as panics.
package producer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoValue is returned by producers that ran successfully but have
// nothing to show.
var ErrNoValue = errors.New("no value")

// Func computes the text of one item from its parameters.
type Func func(ctx context.Context, params []string) (string, error)

// Registry maps item kinds to producers. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a producer. It returns an error if the kind is empty, the
// function is nil, or the kind is already registered.
func (r *Registry) Register(kind string, fn Func) error {
	if kind == "" {
		return errors.New("producer kind cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("producer %q: function cannot be nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[kind]; exists {
		return fmt.Errorf("producer %q already registered", kind)
	}
	r.funcs[kind] = fn
	return nil
}

// Set adds or replaces a producer.
func (r *Registry) Set(kind string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[kind] = fn
}

// Lookup returns the producer registered for kind.
func (r *Registry) Lookup(kind string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[kind]
	return fn, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Builtin returns a registry holding every built-in producer backed by the
// live system.
func Builtin() *Registry {
	r := NewRegistry()
	DefaultSystem().Install(r)
	return r
}
