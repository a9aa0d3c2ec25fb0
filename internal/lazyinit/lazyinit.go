// Package lazyinit builds a value once, on first use, and shares it between
// goroutines. Concurrent first callers wait on a single build; a failed build
// is not cached, so the next caller tries again.
package lazyinit

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Value holds a lazily built *T
type Value[T any] struct {
	build func(ctx context.Context) (*T, error)
	value atomic.Pointer[T]
	group singleflight.Group
}

// New creates a Value that calls build on first Get
func New[T any](build func(ctx context.Context) (*T, error)) *Value[T] {
	return &Value[T]{build: build}
}

// Get returns the built value, building it if necessary
func (v *Value[T]) Get(ctx context.Context) (*T, error) {
	if existing := v.value.Load(); existing != nil {
		return existing, nil
	}

	result, err, _ := v.group.Do("init", func() (any, error) {
		if existing := v.value.Load(); existing != nil {
			return existing, nil
		}
		built, err := v.build(ctx)
		if err != nil {
			return nil, err
		}
		v.value.Store(built)
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

// Ready reports whether a value has been built
func (v *Value[T]) Ready() bool {
	return v.value.Load() != nil
}
