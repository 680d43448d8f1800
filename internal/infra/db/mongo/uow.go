package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.mongodb.org/mongo-driver/x/mongo/driver/session"

	"rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/reservation"
)

const vehicleLocksCollection = "vehicle_locks"

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrReadOnlyUnit            = errors.New("mongo: write in read-only unit of work")
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB    *mongo.Database
	Clock func() time.Time

	reservations *ReservationRepository
	outbox       *OutboxStore
}

func NewFactory(db *mongo.Database) *Factory {
	return &Factory{DB: db, reservations: NewReservationRepository(db), outbox: NewOutboxStore(db)}
}

// Begin starts a session with a snapshot transaction.
func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	if f.reservations == nil {
		f.reservations = NewReservationRepository(f.DB)
		f.outbox = NewOutboxStore(f.DB)
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:      session,
		readOnly:     opts.ReadOnly,
		locks:        f.DB.Collection(vehicleLocksCollection),
		reservations: f.reservations,
		outbox:       unitOutbox{store: f.outbox, clock: f.now},
		clock:        f.now,
	}, nil
}

func (f *Factory) now() time.Time {
	if f.Clock != nil {
		return f.Clock().UTC()
	}
	return time.Now().UTC()
}

type Unit struct {
	session  mongo.Session
	readOnly bool
	locks    *mongo.Collection
	clock    func() time.Time

	reservations *ReservationRepository
	outbox       unitOutbox
}

func (u *Unit) Reservations() reservation.Repository {
	return u.reservations
}

func (u *Unit) Outbox() outbox.Outbox {
	return u.outbox
}

// LockVehicle writes the vehicle's lock document inside the transaction. A
// second transaction touching the same document fails with a write conflict.
func (u *Unit) LockVehicle(ctx context.Context, vehicleID string) error {
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	_, err := u.locks.UpdateOne(ctx,
		bson.M{"_id": vehicleID},
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"locked_at": u.clock()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("mongo: lock vehicle %s: %w", vehicleID, &reservation.ConflictError{})
		}
		return err
	}
	return nil
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		if isConflict(err) {
			return fmt.Errorf("mongo: commit: %w", &reservation.ConflictError{})
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	err := u.session.AbortTransaction(ctx)
	if errors.Is(err, session.ErrAbortAfterCommit) || errors.Is(err, session.ErrSessionEnded) {
		return nil
	}
	return err
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// unitOutbox inserts through the session carried on ctx. Records are relayed
// by the outbox worker, so Flush has nothing to do.
type unitOutbox struct {
	store *OutboxStore
	clock func() time.Time
}

func (o unitOutbox) Add(ctx context.Context, rec outbox.EventRecord) error {
	return o.store.Add(ctx, rec, o.clock())
}

func (o unitOutbox) Flush(context.Context) error { return nil }

var (
	_ uow.UoWFactory      = (*Factory)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
