package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "rentacar/internal/app/outbox"
	infraoutbox "rentacar/internal/infra/outbox"
)

// claimLease is how long a claimed row stays invisible to other workers.
const claimLease = time.Minute

type OutboxStore struct {
	q querier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{q: pool}
}

func (s *OutboxStore) Add(ctx context.Context, rec appoutbox.EventRecord, now time.Time) error {
	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := s.q.Exec(ctx, `INSERT INTO app_outbox (id, name, payload, occurred_at, aggregate, headers, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		rec.ID, rec.Name, string(rec.Payload), rec.OccurredAt, rec.Aggregate, headers, now)
	return err
}

// Claim leases the oldest due row. SKIP LOCKED lets several workers poll at once.
func (s *OutboxStore) Claim(ctx context.Context, workerID string, now time.Time) (*infraoutbox.Claimed, error) {
	var (
		c       infraoutbox.Claimed
		payload string
	)
	err := s.q.QueryRow(ctx, `UPDATE app_outbox SET state = 'CLAIMED', claimed_by = $1, claimed_at = $2
		WHERE id = (
			SELECT id FROM app_outbox
			WHERE (state IN ('NEW', 'FAILED') AND next_attempt_at <= $2)
			   OR (state = 'CLAIMED' AND claimed_at <= $3)
			ORDER BY next_attempt_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload::text, occurred_at, aggregate, headers, attempts`,
		workerID, now, now.Add(-claimLease),
	).Scan(&c.ID, &c.Name, &payload, &c.OccurredAt, &c.Aggregate, &c.Headers, &c.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Payload = []byte(payload)
	c.OccurredAt = c.OccurredAt.UTC()
	return &c, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.Exec(ctx, `UPDATE app_outbox SET state = 'SENT', sent_at = $2 WHERE id = $1`, id, at)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.q.Exec(ctx, `UPDATE app_outbox
		SET state = 'FAILED', next_attempt_at = $2, last_error = $3, attempts = attempts + 1
		WHERE id = $1`, id, next, errMsg)
	return err
}

var _ infraoutbox.Store = (*OutboxStore)(nil)
