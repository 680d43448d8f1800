package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentacar/internal/app/outbox"
	"rentacar/internal/infra/outbox"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type storedRecord struct {
	outbox.Claimed
	sent      bool
	nextAt    time.Time
	lastError string
}

type fakeStore struct {
	mu      sync.Mutex
	records []*storedRecord
}

func (s *fakeStore) add(rec appoutbox.EventRecord) {
	s.records = append(s.records, &storedRecord{Claimed: outbox.Claimed{EventRecord: rec}, nextAt: now})
}

func (s *fakeStore) Claim(_ context.Context, _ string, at time.Time) (*outbox.Claimed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if !r.sent && !r.nextAt.After(at) {
			r.nextAt = at.Add(time.Hour)
			c := r.Claimed
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			r.sent = true
		}
	}
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, next time.Time, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			r.Attempts++
			r.nextAt = next
			r.lastError = msg
		}
	}
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type producerFunc func(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error

func (f producerFunc) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	return f(ctx, topic, key, payload, headers)
}

func record(id, name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"reservation_id":"r1","customer_id":"c1"}`),
		OccurredAt: now,
		Aggregate:  "r1",
		Headers:    map[string]string{appoutbox.HeaderContentType: "application/json", "traceparent": "00-abc-def-01"},
	}
}

func TestWorker_PublishesCloudEvents(t *testing.T) {
	store := &fakeStore{}
	store.add(record("e1", "reservation.created"))
	store.add(record("e2", "reservation.confirmed"))
	var got []published
	w := &outbox.Worker{
		Store: store,
		Producer: producerFunc(func(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
			got = append(got, published{topic, key, payload, headers})
			return nil
		}),
		TopicPrefix: "dev.",
		Clock:       func() time.Time { return now },
	}

	n, err := w.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.Equal(t, "dev.reservation.events.v1", got[0].topic)
	assert.Equal(t, "r1", got[0].key)
	assert.Equal(t, "application/cloudevents+json", got[0].headers[appoutbox.HeaderContentType])
	assert.Equal(t, "e1", got[0].headers["ce-id"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(got[1].payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "e2", evt["id"])
	assert.Equal(t, "reservation.confirmed.v1", evt["type"])
	assert.Equal(t, "app://rentacar", evt["source"])
	assert.Equal(t, "00-abc-def-01", evt["traceparent"])
	assert.Equal(t, "c1", evt["data"].(map[string]any)["customer_id"])

	n, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorker_BacksOffOnPublishFailure(t *testing.T) {
	store := &fakeStore{}
	store.add(record("e1", "reservation.created"))
	w := &outbox.Worker{
		Store: store,
		Producer: producerFunc(func(context.Context, string, string, []byte, map[string]string) error {
			return errors.New("broker down")
		}),
		Backoff: []time.Duration{time.Second, 5 * time.Second},
		Clock:   func() time.Time { return now },
	}

	ok, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.records[0].Attempts)
	assert.Equal(t, now.Add(time.Second), store.records[0].nextAt)
	assert.Equal(t, "broker down", store.records[0].lastError)
	assert.False(t, store.records[0].sent)

	store.records[0].nextAt = now
	_, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Second), store.records[0].nextAt)

	store.records[0].nextAt = now
	_, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Second), store.records[0].nextAt, "last backoff step repeats")
}

func TestWorker_MalformedPayloadIsMarkedFailed(t *testing.T) {
	store := &fakeStore{}
	rec := record("e1", "reservation.created")
	rec.Payload = []byte("not json")
	store.add(rec)
	calls := 0
	w := &outbox.Worker{
		Store: store,
		Producer: producerFunc(func(context.Context, string, string, []byte, map[string]string) error {
			calls++
			return nil
		}),
		Clock: func() time.Time { return now },
	}

	_, err := w.ProcessOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.NotEmpty(t, store.records[0].lastError)
}

func TestWorker_RunRequiresDependencies(t *testing.T) {
	err := (&outbox.Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, outbox.ErrWorkerNotConfigured)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	store.add(record("e1", "reservation.created"))
	sent := make(chan struct{}, 1)
	w := &outbox.Worker{
		Store:    store,
		Interval: 5 * time.Millisecond,
		Producer: producerFunc(func(context.Context, string, string, []byte, map[string]string) error {
			select {
			case sent <- struct{}{}:
			default:
			}
			return nil
		}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("record was not relayed")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "reservation.events.v1", outbox.TopicFor("", "reservation.cancelled"))
	assert.Equal(t, "prod.reservation.events.v1", outbox.TopicFor("prod.", "reservation.completed"))
}
