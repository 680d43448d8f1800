package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentacar/internal/infra/inbox"
)

const inboxCollection = "app_inbox"

type InboxStore struct {
	col      *mongo.Collection
	consumer string
}

func NewInboxStore(db *mongo.Database, consumer string) *InboxStore {
	return &InboxStore{col: db.Collection(inboxCollection), consumer: consumer}
}

func ensureInboxIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(inboxCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

func (s *InboxStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}

var _ inbox.Store = (*InboxStore)(nil)
