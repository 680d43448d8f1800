package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Start begins a unit and returns a context carrying it.
func Start(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, error) {
	if factory == nil {
		return nil, ctx, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(ContextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, ContextWithUnitOfWork(execCtx, unit), nil
}

// ReadOnly reuses the unit already on ctx or opens a read-only one. The
// returned release func is never nil.
func ReadOnly(ctx context.Context, factory UoWFactory) (UnitOfWork, context.Context, func(), error) {
	if unit, ok := FromContext(ctx); ok {
		return unit, ctx, func() {}, nil
	}
	unit, execCtx, err := Start(ctx, factory, TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, func() {}, err
	}
	return unit, execCtx, func() { _ = unit.Rollback(execCtx) }, nil
}
