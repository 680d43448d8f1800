package uow

import (
	"context"

	"rentacar/internal/app/outbox"
	"rentacar/internal/domain/reservation"
)

// UnitOfWork scopes repositories to one transaction.
type UnitOfWork interface {
	Reservations() reservation.Repository
	Outbox() outbox.Outbox
	// LockVehicle serializes writers on vehicleID until the unit ends. Creates
	// take it before the availability check so check and insert are atomic.
	LockVehicle(ctx context.Context, vehicleID string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units whose driver carries the
// transaction on the context (mongo sessions).
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}
