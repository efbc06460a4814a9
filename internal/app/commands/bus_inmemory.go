package commands

import (
	"context"
	"fmt"
	"sort"
)

// Registry routes commands to handlers registered by key.
type Registry struct {
	handlers map[string]BusFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]BusFunc)}
}

func (r *Registry) Dispatch(ctx context.Context, cmd Command) (any, error) {
	h, ok := r.handlers[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.Key())
	}
	return h(ctx, cmd)
}

// Keys lists registered command keys in lexical order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register binds a typed handler to the key of C. Registering a key twice panics.
func Register[C Command, R any](r *Registry, handler Handler[C, R]) {
	if r == nil {
		panic("commands: nil registry")
	}
	var zero C
	key := zero.Key()
	if key == "" {
		panic("commands: empty key registration")
	}
	if _, dup := r.handlers[key]; dup {
		panic("commands: duplicate registration for " + key)
	}
	r.handlers[key] = func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := raw.(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, key)
		}
		return handler.Handle(ctx, cmd)
	}
}
