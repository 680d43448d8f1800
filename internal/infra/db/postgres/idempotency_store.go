package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentacar/internal/app/middleware"
)

type IdempotencyStore struct {
	q querier
}

func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{q: pool}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var (
		rec     = middleware.IdempotencyRecord{Key: key}
		expires *time.Time
	)
	err := s.q.QueryRow(ctx, `SELECT in_flight, payload, error, error_kind, occurred_at, expires_at FROM app_idempotency WHERE key = $1`, key).
		Scan(&rec.InFlight, &rec.Payload, &rec.Error, &rec.ErrorKind, &rec.OccurredAt, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	if expires != nil {
		rec.ExpiresAt = expires.UTC()
	}
	return rec, true, nil
}

// Claim inserts the record, or takes over a row that lapsed before
// rec.OccurredAt. Zero affected rows means the key is held.
func (s *IdempotencyStore) Claim(ctx context.Context, rec middleware.IdempotencyRecord) (bool, error) {
	tag, err := s.q.Exec(ctx, `INSERT INTO app_idempotency (key, in_flight, payload, error, error_kind, occurred_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET in_flight = EXCLUDED.in_flight, payload = EXCLUDED.payload, error = EXCLUDED.error,
			error_kind = EXCLUDED.error_kind, occurred_at = EXCLUDED.occurred_at, expires_at = EXCLUDED.expires_at
		WHERE app_idempotency.expires_at IS NOT NULL AND app_idempotency.expires_at < EXCLUDED.occurred_at`,
		idempotencyArgs(rec)...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	_, err := s.q.Exec(ctx, `INSERT INTO app_idempotency (key, in_flight, payload, error, error_kind, occurred_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET in_flight = EXCLUDED.in_flight, payload = EXCLUDED.payload, error = EXCLUDED.error,
			error_kind = EXCLUDED.error_kind, occurred_at = EXCLUDED.occurred_at, expires_at = EXCLUDED.expires_at`,
		idempotencyArgs(rec)...)
	return err
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM app_idempotency WHERE key = $1 AND in_flight`, key)
	return err
}

func idempotencyArgs(rec middleware.IdempotencyRecord) []any {
	var expires *time.Time
	if !rec.ExpiresAt.IsZero() {
		expires = &rec.ExpiresAt
	}
	return []any{rec.Key, rec.InFlight, rec.Payload, rec.Error, rec.ErrorKind, rec.OccurredAt, expires}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
