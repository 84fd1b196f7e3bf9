package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Loader fills a cache on miss, collapsing concurrent misses for the
// same key into a single fetch.
type Loader[T any] struct {
	cache Cache[T]
	group singleflight.Group
}

// NewLoader wraps a cache with singleflight loading.
func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c}
}

// Load returns the cached value for key, or invokes fetch to produce
// and cache it. Only one fetch per key runs at a time; other callers
// share its result.
func (l *Loader[T]) Load(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	res, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		l.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Invalidate drops key so the next Load refetches it.
func (l *Loader[T]) Invalidate(key string) {
	l.cache.Delete(key)
}
