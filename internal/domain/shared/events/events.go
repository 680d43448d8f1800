package events

import "time"

// DomainEvent is a fact emitted by an aggregate transition. Aggregates return
// events to the caller instead of buffering them; the caller decides where they go.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Collect drops nil events, keeping order.
func Collect(evs ...DomainEvent) []DomainEvent {
	out := make([]DomainEvent, 0, len(evs))
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		out = append(out, ev)
	}
	return out
}
