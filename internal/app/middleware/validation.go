package middleware

import (
	"context"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/queries"
)

// Validatable messages check their own shape before any I/O happens.
type Validatable interface {
	Validate() error
}

func Validation() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if v, ok := cmd.(Validatable); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryValidation() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if v, ok := q.(Validatable); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return next.Ask(ctx, q)
		})
	}
}
