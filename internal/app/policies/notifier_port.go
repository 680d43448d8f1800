package policies

import (
	"context"
	"time"
)

// Notification is a reservation lifecycle message addressed to a customer.
type Notification struct {
	EventID       string
	EventName     string
	ReservationID string
	CustomerID    string
	VehicleID     string
	Reason        string
	OccurredAt    time.Time
}

// Notifier delivers notifications. Delivery guarantees are the implementation's.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
