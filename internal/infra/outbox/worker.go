package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "rentacar/internal/app/outbox"
)

// Claimed is a stored record leased to one worker.
type Claimed struct {
	appoutbox.EventRecord
	Attempts int
}

// Store is the persistent side of the outbox. Claim returns nil when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string, now time.Time) (*Claimed, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// BatchSize caps records relayed per tick.
	BatchSize int
	Clock     func() time.Time
	Logger    *slog.Logger
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger().ErrorContext(ctx, "outbox relay failed", slog.Any("err", err))
			}
		}
	}
}

// Drain relays due records until the store is empty or the batch is spent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	relayed := 0
	for relayed < w.batchSize() {
		ok, err := w.ProcessOnce(ctx)
		if err != nil || !ok {
			return relayed, err
		}
		relayed++
	}
	return relayed, nil
}

// ProcessOnce relays one record. It reports false when nothing was due.
// Publish failures are recorded on the record and do not fail the call.
func (w *Worker) ProcessOnce(ctx context.Context) (bool, error) {
	rec, err := w.Store.Claim(ctx, w.workerID(), w.now())
	if err != nil || rec == nil {
		return false, err
	}
	if err := Publish(ctx, w.Producer, w.TopicPrefix, w.source(), rec.EventRecord); err != nil {
		next := w.nextRetry(rec.Attempts)
		w.logger().WarnContext(ctx, "outbox publish failed",
			slog.String("event_id", rec.ID),
			slog.String("event", rec.Name),
			slog.Int("attempts", rec.Attempts+1),
			slog.Time("next_attempt_at", next),
			slog.Any("err", err),
		)
		return true, w.Store.MarkFailed(ctx, rec.ID, next, err.Error())
	}
	return true, w.Store.MarkSent(ctx, rec.ID, w.now())
}

// DefaultSource is the CloudEvents source used when none is configured.
const DefaultSource = "app://rentacar"

// Publish formats rec as a CloudEvent and sends it keyed by its aggregate.
func Publish(ctx context.Context, p Producer, topicPrefix, source string, rec appoutbox.EventRecord) error {
	payload, headers, err := FormatCloudEvent(rec, source)
	if err != nil {
		return err
	}
	return p.Publish(ctx, TopicFor(topicPrefix, rec.Name), rec.Aggregate, payload, headers)
}

// FormatCloudEvent wraps rec as a structured-mode CloudEvents 1.0 JSON message.
// The record id becomes the event id so consumers can deduplicate redeliveries.
func FormatCloudEvent(rec appoutbox.EventRecord, source string) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          source,
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	headers[appoutbox.HeaderContentType] = "application/cloudevents+json"
	headers["ce-id"] = rec.ID
	return payload, headers, nil
}

// TopicFor maps "reservation.confirmed" to "<prefix>reservation.events.v1".
func TopicFor(prefix, name string) string {
	rec := appoutbox.EventRecord{Name: name}
	return prefix + rec.AggregateType() + ".events.v1"
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return "outbox-worker"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) now() time.Time {
	if w.Clock != nil {
		return w.Clock().UTC()
	}
	return time.Now().UTC()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return w.now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return w.now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return w.now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return DefaultSource
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
