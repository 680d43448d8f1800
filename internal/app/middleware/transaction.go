package middleware

import (
	"context"
	"log/slog"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command in its own unit of work. The unit commits
// only when the handler succeeds.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, logger *slog.Logger) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, execCtx, err := uow.Start(ctx, factory, opts)
			if err != nil {
				return nil, err
			}
			committed := false
			defer func() {
				if committed {
					return
				}
				if rbErr := unit.Rollback(execCtx); rbErr != nil {
					logger.WarnContext(ctx, "rollback failed", slog.String("command", cmd.Key()), slog.Any("err", rbErr))
				}
			}()

			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, err
			}
			committed = true
			return res, nil
		})
	}
}
