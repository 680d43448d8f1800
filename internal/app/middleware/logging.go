package middleware

import (
	"context"
	"log/slog"
	"time"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/queries"
)

// Logging records each command with its outcome and latency.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), start, err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := next.Ask(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), start, err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, start time.Time, err error) {
	attrs := []any{
		slog.String("kind", kind),
		slog.String("key", key),
		slog.Duration("latency", time.Since(start)),
	}
	if err != nil {
		logger.WarnContext(ctx, "bus message failed", append(attrs, slog.Any("err", err))...)
		return
	}
	logger.DebugContext(ctx, "bus message handled", attrs...)
}
