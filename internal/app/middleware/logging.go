package middleware

import (
	"context"
	"log/slog"
	"time"

	"convo/internal/app/commands"
	"convo/internal/app/queries"
	"convo/internal/domain/shared/fault"
)

// Logging records failed commands. Expected client faults go to Debug, everything else
// to Error.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		if logger == nil {
			return next
		}
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				logFailure(ctx, logger, "command", cmd.Key(), time.Since(start), err)
			}
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		if logger == nil {
			return next
		}
		return queries.BusFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			if err != nil {
				logFailure(ctx, logger, "query", q.Key(), time.Since(start), err)
			}
			return res, err
		})
	}
}

func logFailure(ctx context.Context, logger *slog.Logger, kind, key string, took time.Duration, err error) {
	level := slog.LevelError
	if fault.KindOf(err) != "" {
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, kind+" failed", "key", key, "duration", took, "error", err)
}
