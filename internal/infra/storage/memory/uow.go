package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit         = errors.New("memory: write in read-only unit of work")
)

// Factory opens units over a shared ReservationStore. Write units serialize on
// one mutex for their whole lifetime, which makes lock, check and insert atomic.
type Factory struct {
	Reservations *ReservationStore
	Outbox       *Outbox

	writeMu sync.Mutex
}

func NewFactory(store *ReservationStore, box *Outbox) *Factory {
	return &Factory{Reservations: store, Outbox: box}
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Reservations == nil || f.Outbox == nil {
		return nil, ErrFactoryMisconfigured
	}
	u := &Unit{factory: f, readOnly: opts.ReadOnly}
	u.repo = &unitReservations{unit: u, base: f.Reservations, staged: map[reservation.ID]*reservation.Reservation{}}
	u.box = &unitOutbox{unit: u}
	if !opts.ReadOnly {
		f.writeMu.Lock()
	}
	return u, nil
}

type Unit struct {
	factory  *Factory
	readOnly bool
	done     bool
	repo     *unitReservations
	box      *unitOutbox
	locked   []string
}

func (u *Unit) Reservations() reservation.Repository { return u.repo }
func (u *Unit) Outbox() outbox.Outbox                { return u.box }

// LockVehicle is satisfied by the unit-wide write mutex; the id is kept for inspection.
func (u *Unit) LockVehicle(ctx context.Context, vehicleID string) error {
	if err := u.writable(); err != nil {
		return err
	}
	u.locked = append(u.locked, vehicleID)
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if !u.readOnly {
		defer u.factory.writeMu.Unlock()
	}
	// Records become flushable only once the reservations they describe are visible.
	box := u.factory.Outbox
	box.mu.Lock()
	defer box.mu.Unlock()
	u.factory.Reservations.apply(u.repo.staged)
	box.records = append(box.records, u.box.records...)
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if !u.readOnly {
		u.factory.writeMu.Unlock()
	}
	return nil
}

func (u *Unit) writable() error {
	switch {
	case u.done:
		return ErrUnitClosed
	case u.readOnly:
		return ErrReadOnlyUnit
	}
	return nil
}

// unitReservations overlays staged writes on the committed store.
type unitReservations struct {
	unit   *Unit
	base   *ReservationStore
	staged map[reservation.ID]*reservation.Reservation
}

func (r *unitReservations) FindByID(ctx context.Context, id reservation.ID) (*reservation.Reservation, error) {
	if staged, ok := r.staged[id]; ok {
		return clone(staged), nil
	}
	return r.base.FindByID(ctx, id)
}

func (r *unitReservations) Add(ctx context.Context, res *reservation.Reservation) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	if _, err := r.FindByID(ctx, res.ID); err == nil {
		return &reservation.ConflictError{ReservationID: res.ID, Version: res.Version}
	}
	res.Version = 1
	r.staged[res.ID] = clone(res)
	return nil
}

func (r *unitReservations) Update(ctx context.Context, res *reservation.Reservation) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	current, err := r.FindByID(ctx, res.ID)
	if err != nil {
		return err
	}
	if current.Version != res.Version {
		return &reservation.ConflictError{ReservationID: res.ID, Version: res.Version}
	}
	res.Version++
	r.staged[res.ID] = clone(res)
	return nil
}

func (r *unitReservations) SearchOverlapping(ctx context.Context, vehicleID string, p period.BookingPeriod, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	return overlapping(r.view(), vehicleID, p, statuses), nil
}

func (r *unitReservations) SearchPaged(ctx context.Context, params reservation.SearchParams) (search.Page[*reservation.Reservation], error) {
	return reservation.Search(r.view(), params)
}

func (r *unitReservations) view() []*reservation.Reservation {
	committed := r.base.snapshot()
	out := make([]*reservation.Reservation, 0, len(committed)+len(r.staged))
	for _, res := range committed {
		if _, shadowed := r.staged[res.ID]; !shadowed {
			out = append(out, res)
		}
	}
	for _, res := range r.staged {
		out = append(out, clone(res))
	}
	return out
}

// unitOutbox holds records until the unit commits.
type unitOutbox struct {
	unit    *Unit
	records []outbox.EventRecord
}

func (o *unitOutbox) Add(ctx context.Context, rec outbox.EventRecord) error {
	if err := o.unit.writable(); err != nil {
		return fmt.Errorf("memory.unitOutbox.Add: %w", err)
	}
	o.records = append(o.records, rec)
	return nil
}

// Flush is a no-op inside a unit; committed records are flushed by the shared Outbox.
func (o *unitOutbox) Flush(context.Context) error { return nil }

var (
	_ uow.UoWFactory         = (*Factory)(nil)
	_ reservation.Repository = (*unitReservations)(nil)
)
