package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/reservation"
)

var (
	ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing pool")
	ErrReadOnlyUnit            = errors.New("postgres: write in read-only unit of work")
)

// Factory opens one read-committed pgx transaction per unit.
type Factory struct {
	Pool  *pgxpool.Pool
	Clock func() time.Time
}

func NewFactory(pool *pgxpool.Pool) *Factory {
	return &Factory{Pool: pool}
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Pool == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &Unit{
		tx:           tx,
		readOnly:     opts.ReadOnly,
		reservations: NewReservationRepository(tx),
		outbox:       unitOutbox{store: &OutboxStore{q: tx}, clock: f.now},
	}, nil
}

func (f *Factory) now() time.Time {
	if f.Clock != nil {
		return f.Clock().UTC()
	}
	return time.Now().UTC()
}

type Unit struct {
	tx       pgx.Tx
	readOnly bool

	reservations *ReservationRepository
	outbox       unitOutbox
}

func (u *Unit) Reservations() reservation.Repository { return u.reservations }
func (u *Unit) Outbox() outbox.Outbox                { return u.outbox }

// LockVehicle takes a transaction-scoped advisory lock keyed by the vehicle id.
// Concurrent creates for one vehicle queue here until the holder commits.
func (u *Unit) LockVehicle(ctx context.Context, vehicleID string) error {
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	if _, err := u.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, vehicleID); err != nil {
		return fmt.Errorf("postgres: lock vehicle %s: %w", vehicleID, err)
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		if isConflict(err) {
			return fmt.Errorf("postgres: commit: %w", &reservation.ConflictError{})
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// unitOutbox inserts into app_outbox inside the unit's transaction; the
// worker relays committed rows.
type unitOutbox struct {
	store *OutboxStore
	clock func() time.Time
}

func (o unitOutbox) Add(ctx context.Context, rec outbox.EventRecord) error {
	return o.store.Add(ctx, rec, o.clock())
}

func (o unitOutbox) Flush(context.Context) error { return nil }

var _ uow.UoWFactory = (*Factory)(nil)
