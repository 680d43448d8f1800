package inbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/app/handlers/notifications"
	appoutbox "rentacar/internal/app/outbox"
	"rentacar/internal/app/policies"
	"rentacar/internal/infra/inbox"
	"rentacar/internal/infra/outbox"
)

type handlerFunc func(ctx context.Context, rec appoutbox.EventRecord) error

func (f handlerFunc) Handle(ctx context.Context, rec appoutbox.EventRecord) error { return f(ctx, rec) }

type notifierFunc func(ctx context.Context, n policies.Notification) error

func (f notifierFunc) Notify(ctx context.Context, n policies.Notification) error { return f(ctx, n) }

func cloudEvent(t *testing.T, id, name string) []byte {
	t.Helper()
	payload, _, err := outbox.FormatCloudEvent(appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"reservation_id":"r1","customer_id":"c1","vehicle_id":"v1","reason":"flight cancelled"}`),
		OccurredAt: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Aggregate:  "r1",
	}, "app://test")
	require.NoError(t, err)
	return payload
}

func TestDecode_RoundTripsWorkerFormat(t *testing.T) {
	rec, err := inbox.Decode(cloudEvent(t, "e1", "reservation.cancelled"))

	require.NoError(t, err)
	assert.Equal(t, "e1", rec.ID)
	assert.Equal(t, "reservation.cancelled", rec.Name)
	assert.Equal(t, "r1", rec.Aggregate)
	assert.JSONEq(t, `{"reservation_id":"r1","customer_id":"c1","vehicle_id":"v1","reason":"flight cancelled"}`, string(rec.Payload))
}

func TestDecode_RejectsIncompleteEvents(t *testing.T) {
	_, err := inbox.Decode([]byte(`{"type":"reservation.created.v1"}`))
	assert.Error(t, err)
	_, err = inbox.Decode([]byte(`nope`))
	assert.Error(t, err)
}

func TestProcessor_DeliversOncePerEventID(t *testing.T) {
	var got []policies.Notification
	p := &inbox.Processor{
		Store: inbox.NewMemoryStore(),
		Handler: &notifications.Dispatcher{Notifier: notifierFunc(func(_ context.Context, n policies.Notification) error {
			got = append(got, n)
			return nil
		})},
	}
	payload := cloudEvent(t, "e1", "reservation.cancelled")

	require.NoError(t, p.Process(context.Background(), payload))
	require.NoError(t, p.Process(context.Background(), payload))

	require.Len(t, got, 1)
	assert.Equal(t, "reservation.cancelled", got[0].EventName)
	assert.Equal(t, "c1", got[0].CustomerID)
	assert.Equal(t, "flight cancelled", got[0].Reason)
}

func TestProcessor_FailedDeliveryIsRetried(t *testing.T) {
	calls := 0
	p := &inbox.Processor{
		Store: inbox.NewMemoryStore(),
		Handler: handlerFunc(func(context.Context, appoutbox.EventRecord) error {
			calls++
			if calls == 1 {
				return errors.New("smtp timeout")
			}
			return nil
		}),
	}
	payload := cloudEvent(t, "e1", "reservation.confirmed")

	assert.Error(t, p.Process(context.Background(), payload))
	assert.NoError(t, p.Process(context.Background(), payload))
	assert.NoError(t, p.Process(context.Background(), payload))
	assert.Equal(t, 2, calls)
}

func TestLoopback_FeedsProcessor(t *testing.T) {
	var names []string
	p := &inbox.Processor{
		Store: inbox.NewMemoryStore(),
		Handler: handlerFunc(func(_ context.Context, rec appoutbox.EventRecord) error {
			names = append(names, rec.Name)
			return nil
		}),
	}

	err := inbox.Loopback{Processor: p}.Publish(context.Background(), "reservation.events.v1", "r1", cloudEvent(t, "e9", "reservation.completed"), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"reservation.completed"}, names)
}

func TestProcessor_RequiresDependencies(t *testing.T) {
	err := (&inbox.Processor{}).Process(context.Background(), nil)
	assert.ErrorIs(t, err, inbox.ErrProcessorNotConfigured)
}
