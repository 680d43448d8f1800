package middleware

import (
	"context"
	"log/slog"

	"rentacar/internal/app/commands"
)

// Flusher hands committed outbox records to their sink.
type Flusher interface {
	Flush(ctx context.Context) error
}

// OutboxFlush sits outside Transaction. A flush failure after commit is logged,
// not returned: the command took effect and the records stay for the worker.
func OutboxFlush(box Flusher, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", slog.String("command", cmd.Key()), slog.Any("err", err))
			}
			return res, nil
		})
	}
}
