package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentacar/internal/domain/shared/events"
)

// Header names set on every encoded record.
const (
	HeaderContentType   = "content-type"
	HeaderAggregateType = "aggregate-type"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// AggregateType is the event name prefix, e.g. "reservation" for "reservation.confirmed".
func (r EventRecord) AggregateType() string {
	if idx := strings.IndexRune(r.Name, '.'); idx > 0 {
		return r.Name[:idx]
	}
	return r.Name
}

// Outbox collects records inside a unit of work. Flush hands them on after commit.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	rec := EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
	}
	rec.Headers = map[string]string{
		HeaderContentType:   "application/json",
		HeaderAggregateType: rec.AggregateType(),
	}
	return rec, nil
}

// RecordDomainEvents encodes evs in order and adds them to box. Nil events are skipped.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs ...events.DomainEvent) error {
	evs = events.Collect(evs...)
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
