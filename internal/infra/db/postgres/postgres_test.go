package postgres_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/app/middleware"
	appoutbox "rentacar/internal/app/outbox"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
	"rentacar/internal/infra/db/postgres"
)

var day = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

// TestMain migrates the test database once for the package.
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		os.Exit(m.Run())
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("TestMain: connect: %v", err)
	}
	if _, err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("TestMain: migrate: %v", err)
	}
	pool.Close()
	os.Exit(m.Run())
}

func newPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE reservations, app_outbox, app_inbox, app_idempotency`)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func pending(vehicleID string, from, to int, net string) *reservation.Reservation {
	return &reservation.Reservation{
		ID:             reservation.ID(uuid.NewString()),
		VehicleID:      vehicleID,
		CustomerID:     "c1",
		Period:         period.Restore(day.AddDate(0, 0, from), day.AddDate(0, 0, to)),
		PickupLocation: "MUC",
		TotalPrice:     money.MustFromNet(net, "0.19", "EUR"),
		Status:         reservation.StatusPending,
		CreatedAt:      day.AddDate(0, 0, from),
		UpdatedAt:      day,
	}
}

func TestReservationRepository_RoundTripAndVersioning(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()
	repo := postgres.NewReservationRepository(pool)

	r := pending("v1", 1, 3, "150.00")
	require.NoError(t, repo.Add(ctx, r))
	assert.Equal(t, int64(1), r.Version)

	got, err := repo.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(r.TotalPrice), "%s != %s", got.TotalPrice, r.TotalPrice)
	assert.Equal(t, 3, got.Period.Days())
	assert.Equal(t, "EUR", got.TotalPrice.Currency)

	_, err = got.Confirm(day)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	again, err := repo.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, again.Status)
	require.NotNil(t, again.ConfirmedAt)

	stale := *r
	_, err = stale.Cancel("late", day)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Update(ctx, &stale), reservation.ErrConcurrencyConflict)

	assert.ErrorIs(t, repo.Add(ctx, r), reservation.ErrConcurrencyConflict, "duplicate id")

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestReservationRepository_OverlapAndSearch(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()
	repo := postgres.NewReservationRepository(pool)

	a := pending("v1", 1, 3, "100.00")
	b := pending("v1", 5, 6, "300.00")
	c := pending("v2", 2, 4, "200.00")
	for _, r := range []*reservation.Reservation{a, b, c} {
		require.NoError(t, repo.Add(ctx, r))
	}

	hits, err := repo.SearchOverlapping(ctx, "v1", period.Restore(day.AddDate(0, 0, 3), day.AddDate(0, 0, 4)), []reservation.Status{reservation.StatusPending})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].ID)

	hits, err = repo.SearchOverlapping(ctx, "", period.Restore(day.AddDate(0, 0, 3), day.AddDate(0, 0, 5)), nil)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	floor := decimal.RequireFromString("200")
	page, err := repo.SearchPaged(ctx, reservation.SearchParams{
		Filter:  reservation.Filter{GrossPrice: search.Bounds[decimal.Decimal]{Min: &floor}, PickupLocation: "muc"},
		Sorting: search.Sorting{Field: "TotalPrice"},
		Paging:  search.NewPaging(2, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 2, page.PageNumber)
	require.Len(t, page.Items, 1)
	assert.Equal(t, b.ID, page.Items[0].ID)

	page, err = repo.SearchPaged(ctx, reservation.SearchParams{Filter: reservation.Filter{VehicleID: "v1"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, b.ID, page.Items[0].ID, "default sort is newest first")

	_, err = repo.SearchPaged(ctx, reservation.SearchParams{Sorting: search.Sorting{Field: "colour"}})
	assert.ErrorIs(t, err, search.ErrUnknownSortField)
}

func TestUnitOfWork_CommitRollbackAndReadOnly(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()
	factory := postgres.NewFactory(pool)
	repo := postgres.NewReservationRepository(pool)

	unit, execCtx, err := uow.Start(ctx, factory, uow.TxOptions{})
	require.NoError(t, err)
	r := pending("v1", 1, 2, "50.00")
	require.NoError(t, unit.LockVehicle(execCtx, "v1"))
	require.NoError(t, unit.Reservations().Add(execCtx, r))
	require.NoError(t, unit.Outbox().Add(execCtx, appoutbox.EventRecord{
		ID: uuid.NewString(), Name: "reservation.created", Payload: []byte(`{"reservation_id":"x"}`),
		Aggregate: string(r.ID), Headers: map[string]string{"content-type": "application/json"},
	}))
	require.NoError(t, unit.Commit(execCtx))
	_, err = repo.FindByID(ctx, r.ID)
	require.NoError(t, err)

	unit, execCtx, err = uow.Start(ctx, factory, uow.TxOptions{})
	require.NoError(t, err)
	discarded := pending("v1", 4, 5, "50.00")
	require.NoError(t, unit.Reservations().Add(execCtx, discarded))
	require.NoError(t, unit.Rollback(execCtx))
	_, err = repo.FindByID(ctx, discarded.ID)
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	unit, execCtx, err = uow.Start(ctx, factory, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	assert.ErrorIs(t, unit.LockVehicle(execCtx, "v1"), postgres.ErrReadOnlyUnit)
	require.NoError(t, unit.Rollback(execCtx))
}

func TestUnitOfWork_VehicleLockSerializesWriters(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()
	factory := postgres.NewFactory(pool)

	first, firstCtx, err := uow.Start(ctx, factory, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, first.LockVehicle(firstCtx, "v1"))

	var (
		wg       sync.WaitGroup
		acquired time.Time
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondCtx, err := uow.Start(ctx, factory, uow.TxOptions{})
		if err != nil {
			return
		}
		defer second.Rollback(secondCtx)
		if second.LockVehicle(secondCtx, "v1") == nil {
			acquired = time.Now()
		}
	}()

	time.Sleep(100 * time.Millisecond)
	released := time.Now()
	require.NoError(t, first.Commit(firstCtx))
	wg.Wait()

	require.False(t, acquired.IsZero())
	assert.True(t, acquired.After(released), "second writer waited for the first to commit")
}

func TestOutboxStore_ClaimBackoffAndSent(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()
	box := postgres.NewOutboxStore(pool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "reservation.created", Payload: []byte(`{"a":1}`), OccurredAt: now}, now))
	claimed, err := box.Claim(ctx, "w1", now)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.JSONEq(t, `{"a":1}`, string(claimed.Payload))
	assert.Equal(t, map[string]string{}, claimed.Headers)

	none, err := box.Claim(ctx, "w2", now)
	require.NoError(t, err)
	assert.Nil(t, none, "claimed rows are leased")

	require.NoError(t, box.MarkFailed(ctx, "e1", now.Add(time.Minute), "broker down"))
	none, err = box.Claim(ctx, "w1", now.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, none)

	again, err := box.Claim(ctx, "w1", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, again.Attempts)
	require.NoError(t, box.MarkSent(ctx, "e1", now))

	done, err := box.Claim(ctx, "w1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, done)
}

func TestInboxAndIdempotencyStores(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()

	inbox := postgres.NewInboxStore(pool, "notifications")
	seen, err := inbox.Seen(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = inbox.Seen(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, inbox.Forget(ctx, "e1"))
	seen, err = inbox.Seen(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, seen)

	store := postgres.NewIdempotencyStore(pool)
	_, found, err := store.Get(ctx, "reservations.create:k1")
	require.NoError(t, err)
	assert.False(t, found)

	rec := middleware.IdempotencyRecord{
		Key:        "reservations.create:k1",
		Payload:    []byte(`{"id":"r1"}`),
		OccurredAt: day,
		ExpiresAt:  day.Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, rec))
	got, found, err := store.Get(ctx, rec.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)
}

func TestIdempotencyStore_ClaimIsExclusive(t *testing.T) {
	pool := newPool(t)
	ctx := context.Background()
	store := postgres.NewIdempotencyStore(pool)
	start := time.Now().UTC().Truncate(time.Millisecond)
	claim := middleware.IdempotencyRecord{
		Key:        "reservations.create:claim",
		InFlight:   true,
		OccurredAt: start,
		ExpiresAt:  start.Add(time.Minute),
	}

	ok, err := store.Claim(ctx, claim)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Claim(ctx, claim)
	require.NoError(t, err)
	assert.False(t, ok, "held claim")

	require.NoError(t, store.Release(ctx, claim.Key))
	ok, err = store.Claim(ctx, claim)
	require.NoError(t, err)
	assert.True(t, ok, "released claim")

	lapsed := claim
	lapsed.OccurredAt = start.Add(2 * time.Minute)
	lapsed.ExpiresAt = lapsed.OccurredAt.Add(time.Minute)
	ok, err = store.Claim(ctx, lapsed)
	require.NoError(t, err)
	assert.True(t, ok, "lapsed claim")

	done := middleware.IdempotencyRecord{
		Key:        claim.Key,
		Payload:    []byte(`{"id":"r1"}`),
		OccurredAt: lapsed.OccurredAt,
		ExpiresAt:  lapsed.OccurredAt.Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, done))
	require.NoError(t, store.Release(ctx, claim.Key))
	got, found, err := store.Get(ctx, claim.Key)
	require.NoError(t, err)
	require.True(t, found, "finished record survives release")
	assert.False(t, got.InFlight)
	assert.Equal(t, done.Payload, got.Payload)
}
