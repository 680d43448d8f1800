package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "rentacar/internal/app/outbox"
)

// Sink receives committed records on Flush.
type Sink func(ctx context.Context, rec appoutbox.EventRecord) error

// Outbox keeps committed records until Flush hands them to the sink. Records
// the sink rejects stay queued for the next flush.
type Outbox struct {
	mu      sync.Mutex
	records []appoutbox.EventRecord
	sink    Sink
}

func NewOutbox(sink Sink) *Outbox {
	return &Outbox{sink: sink}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	o.mu.Unlock()
	if o.sink == nil || len(pending) == 0 {
		return nil
	}
	var (
		failed []appoutbox.EventRecord
		errs   []error
	)
	for _, rec := range pending {
		if err := o.sink(ctx, rec); err != nil {
			failed = append(failed, rec)
			errs = append(errs, err)
		}
	}
	if len(failed) > 0 {
		o.mu.Lock()
		o.records = append(failed, o.records...)
		o.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Pending returns a copy of unflushed records.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
