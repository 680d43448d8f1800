package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"rentacar/internal/infra/inbox"
)

type InboxStore struct {
	q        querier
	consumer string
}

func NewInboxStore(pool *pgxpool.Pool, consumer string) *InboxStore {
	return &InboxStore{q: pool, consumer: consumer}
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	tag, err := s.q.Exec(ctx, `INSERT INTO app_inbox (event_id, consumer) VALUES ($1, $2) ON CONFLICT DO NOTHING`, eventID, s.consumer)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM app_inbox WHERE event_id = $1 AND consumer = $2`, eventID, s.consumer)
	return err
}

var _ inbox.Store = (*InboxStore)(nil)
