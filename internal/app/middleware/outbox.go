package middleware

import (
	"context"

	"convo/internal/app/commands"
	"convo/internal/app/outbox"
)

// OutboxFlush nudges the relay after a command committed. Place it outside Transaction.
func OutboxFlush(relay outbox.Relay) CommandMiddleware {
	if relay == nil {
		panic("middleware: outbox relay required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := relay.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
