package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentacar/internal/app/middleware"
)

const idempotencyCollection = "app_idempotency"

// IdempotencyStore keeps command results until their ExpiresAt, after which a
// TTL index removes them.
type IdempotencyStore struct {
	col *mongo.Collection
}

func NewIdempotencyStore(db *mongo.Database) *IdempotencyStore {
	return &IdempotencyStore{col: db.Collection(idempotencyCollection)}
}

func ensureIdempotencyIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(idempotencyCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return doc.toRecord(), true, nil
}

// Claim replaces a lapsed record in place or inserts a new one; a duplicate
// key means another request holds the key.
func (s *IdempotencyStore) Claim(ctx context.Context, rec middleware.IdempotencyRecord) (bool, error) {
	doc := newIdempotencyDocument(rec)
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "expires_at": bson.M{"$lt": rec.OccurredAt}}, doc)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	doc := newIdempotencyDocument(rec)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": key, "in_flight": true})
	return err
}

type idempotencyDocument struct {
	ID         string     `bson:"_id"`
	InFlight   bool       `bson:"in_flight"`
	Payload    []byte     `bson:"payload,omitempty"`
	Error      string     `bson:"error,omitempty"`
	ErrorKind  string     `bson:"error_kind,omitempty"`
	OccurredAt time.Time  `bson:"occurred_at"`
	ExpiresAt  *time.Time `bson:"expires_at,omitempty"`
}

func newIdempotencyDocument(rec middleware.IdempotencyRecord) idempotencyDocument {
	doc := idempotencyDocument{
		ID:         rec.Key,
		InFlight:   rec.InFlight,
		Payload:    rec.Payload,
		Error:      rec.Error,
		ErrorKind:  rec.ErrorKind,
		OccurredAt: rec.OccurredAt,
	}
	if !rec.ExpiresAt.IsZero() {
		exp := rec.ExpiresAt
		doc.ExpiresAt = &exp
	}
	return doc
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	rec := middleware.IdempotencyRecord{
		Key:        d.ID,
		InFlight:   d.InFlight,
		Payload:    d.Payload,
		Error:      d.Error,
		ErrorKind:  d.ErrorKind,
		OccurredAt: d.OccurredAt.UTC(),
	}
	if d.ExpiresAt != nil {
		rec.ExpiresAt = d.ExpiresAt.UTC()
	}
	return rec
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
