package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB *mongo.Database
}

// New connects and pings. Transactions need a replica set or sharded cluster.
func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes every store relies on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if err := ensureReservationIndexes(ctx, c.DB); err != nil {
		return err
	}
	if err := ensureOutboxIndexes(ctx, c.DB); err != nil {
		return err
	}
	if err := ensureInboxIndexes(ctx, c.DB); err != nil {
		return err
	}
	return ensureIdempotencyIndexes(ctx, c.DB)
}
