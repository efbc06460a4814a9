package middleware

import (
	"context"
	"log/slog"

	"convo/internal/app/commands"
	"convo/internal/domain/shared/fault"
)

// RetryOnConflict re-dispatches commands that lost a race on a uniqueness or version
// check. It must sit outside Transaction so every attempt gets a fresh unit.
func RetryOnConflict(attempts int, logger *slog.Logger) CommandMiddleware {
	if attempts < 1 {
		attempts = 1
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var (
				res any
				err error
			)
			for attempt := 1; attempt <= attempts; attempt++ {
				res, err = next.Dispatch(ctx, cmd)
				if err == nil || !fault.IsKind(err, fault.Conflict) || ctx.Err() != nil {
					return res, err
				}
				if logger != nil {
					logger.Debug("command conflict, retrying", "command", cmd.Key(), "attempt", attempt, "error", err)
				}
			}
			return res, err
		})
	}
}
