package resource

import (
	"context"
	"sync"
)

// Lazy defers a fetch until the first Get and memoizes the outcome, error
// included, for the lifetime of the value.
type Lazy[T any] struct {
	mu       sync.Mutex
	fn       func(ctx context.Context) (T, error)
	resolved bool
	value    T
	err      error
}

// NewLazy wraps fn. Construction performs no I/O.
func NewLazy[T any](fn func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{fn: fn}
}

// Resolved returns a Lazy that is already resolved to value.
func Resolved[T any](value T) *Lazy[T] {
	return &Lazy[T]{resolved: true, value: value}
}

// Get resolves the value on first call; later calls return the memoized
// result.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.resolved {
		if l.fn != nil {
			l.value, l.err = l.fn(ctx)
		}
		l.resolved = true
		l.fn = nil
	}
	return l.value, l.err
}

// IsResolved reports whether Get has completed.
func (l *Lazy[T]) IsResolved() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolved
}
