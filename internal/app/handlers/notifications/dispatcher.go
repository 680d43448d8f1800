package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rentacar/internal/app/outbox"
	"rentacar/internal/app/policies"
)

var ErrNotifierMissing = errors.New("notifications: notifier missing")

// Dispatcher turns reservation event records into customer notifications.
// Records of other aggregates are ignored.
type Dispatcher struct {
	Notifier policies.Notifier
	Logger   *slog.Logger
}

// reservationPayload matches the JSON encoding of every reservation event.
type reservationPayload struct {
	ReservationID string `json:"reservation_id"`
	VehicleID     string `json:"vehicle_id"`
	CustomerID    string `json:"customer_id"`
	Reason        string `json:"reason"`
}

func (d *Dispatcher) Handle(ctx context.Context, rec outbox.EventRecord) error {
	if d.Notifier == nil {
		return ErrNotifierMissing
	}
	if !strings.HasPrefix(rec.Name, "reservation.") {
		d.logger().DebugContext(ctx, "notification skipped", slog.String("event", rec.Name))
		return nil
	}
	var payload reservationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("notifications.Dispatcher.Handle: decode %s: %w", rec.Name, err)
	}
	reservationID := payload.ReservationID
	if reservationID == "" {
		reservationID = rec.Aggregate
	}
	return d.Notifier.Notify(ctx, policies.Notification{
		EventID:       rec.ID,
		EventName:     rec.Name,
		ReservationID: reservationID,
		CustomerID:    payload.CustomerID,
		VehicleID:     payload.VehicleID,
		Reason:        payload.Reason,
		OccurredAt:    rec.OccurredAt,
	})
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// LogNotifier writes notifications to the log instead of a mail or SMS gateway.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg policies.Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "customer notified",
		slog.String("event", msg.EventName),
		slog.String("event_id", msg.EventID),
		slog.String("reservation_id", msg.ReservationID),
		slog.String("customer_id", msg.CustomerID),
		slog.String("reason", msg.Reason),
	)
	return nil
}

var _ policies.Notifier = LogNotifier{}
