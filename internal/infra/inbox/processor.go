package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	appoutbox "rentacar/internal/app/outbox"
)

// Store records which events a consumer has already handled. Seen marks the
// event and reports whether it was marked before. Forget undoes a mark so a
// failed delivery is retried.
type Store interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type RecordHandler interface {
	Handle(ctx context.Context, rec appoutbox.EventRecord) error
}

var ErrProcessorNotConfigured = errors.New("inbox: processor missing dependencies")

// Processor decodes CloudEvents and hands each event id to Handler at most once.
type Processor struct {
	Store   Store
	Handler RecordHandler
	Logger  *slog.Logger
}

type cloudEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Subject string          `json:"subject"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data"`
}

// Decode turns a structured CloudEvent back into an outbox record.
func Decode(payload []byte) (appoutbox.EventRecord, error) {
	var evt cloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return appoutbox.EventRecord{}, fmt.Errorf("inbox: decode cloudevent: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return appoutbox.EventRecord{}, errors.New("inbox: cloudevent without id or type")
	}
	return appoutbox.EventRecord{
		ID:         evt.ID,
		Name:       strings.TrimSuffix(evt.Type, ".v1"),
		Payload:    evt.Data,
		OccurredAt: evt.Time,
		Aggregate:  evt.Subject,
	}, nil
}

func (p *Processor) Process(ctx context.Context, payload []byte) error {
	if p.Store == nil || p.Handler == nil {
		return ErrProcessorNotConfigured
	}
	rec, err := Decode(payload)
	if err != nil {
		return err
	}
	seen, err := p.Store.Seen(ctx, rec.ID)
	if err != nil {
		return err
	}
	if seen {
		p.logger().DebugContext(ctx, "duplicate event skipped", slog.String("event_id", rec.ID))
		return nil
	}
	if err := p.Handler.Handle(ctx, rec); err != nil {
		if fErr := p.Store.Forget(ctx, rec.ID); fErr != nil {
			err = errors.Join(err, fErr)
		}
		return err
	}
	return nil
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Loopback is an outbox producer that delivers straight to a Processor, for
// deployments without a broker.
type Loopback struct {
	Processor *Processor
}

func (l Loopback) Publish(ctx context.Context, _ string, _ string, payload []byte, _ map[string]string) error {
	return l.Processor.Process(ctx, payload)
}

// MemoryStore keeps marks for the life of the process.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: map[string]struct{}{}}
}

func (s *MemoryStore) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[eventID]; ok {
		return true, nil
	}
	s.seen[eventID] = struct{}{}
	return false, nil
}

func (s *MemoryStore) Forget(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}
