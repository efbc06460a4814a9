package queries

import (
	"context"
	"fmt"
)

type Registry struct {
	handlers map[string]BusFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]BusFunc)}
}

func (r *Registry) Ask(ctx context.Context, query Query) (any, error) {
	h, ok := r.handlers[query.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, query.Key())
	}
	return h(ctx, query)
}

func Register[Q Query, R any](r *Registry, handler Handler[Q, R]) {
	if r == nil {
		panic("queries: nil registry")
	}
	var zero Q
	key := zero.Key()
	if key == "" {
		panic("queries: empty key registration")
	}
	if _, dup := r.handlers[key]; dup {
		panic("queries: duplicate registration for " + key)
	}
	r.handlers[key] = func(ctx context.Context, raw Query) (any, error) {
		q, ok := raw.(Q)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, key)
		}
		return handler.Handle(ctx, q)
	}
}
