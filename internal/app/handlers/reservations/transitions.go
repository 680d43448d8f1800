package reservations

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/outbox"
	"rentacar/internal/domain/availability"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/events"
)

// TransitionCommand addresses one reservation.
type TransitionCommand interface {
	commands.Command
	Target() reservation.ID
}

type ConfirmCommand struct {
	ReservationID   string
	IdempotencyKeyV string
}

type CancelCommand struct {
	ReservationID   string
	Reason          string
	IdempotencyKeyV string
}

type ActivateCommand struct {
	ReservationID   string
	IdempotencyKeyV string
}

type CompleteCommand struct {
	ReservationID   string
	IdempotencyKeyV string
}

func (c ConfirmCommand) Key() string  { return ConfirmKey }
func (c CancelCommand) Key() string   { return CancelKey }
func (c ActivateCommand) Key() string { return ActivateKey }
func (c CompleteCommand) Key() string { return CompleteKey }

func (c ConfirmCommand) Target() reservation.ID  { return reservation.ID(strings.TrimSpace(c.ReservationID)) }
func (c CancelCommand) Target() reservation.ID   { return reservation.ID(strings.TrimSpace(c.ReservationID)) }
func (c ActivateCommand) Target() reservation.ID { return reservation.ID(strings.TrimSpace(c.ReservationID)) }
func (c CompleteCommand) Target() reservation.ID { return reservation.ID(strings.TrimSpace(c.ReservationID)) }

func (c ConfirmCommand) IdempotencyKey() string  { return c.IdempotencyKeyV }
func (c CancelCommand) IdempotencyKey() string   { return c.IdempotencyKeyV }
func (c ActivateCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CompleteCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ConfirmCommand) ResultPrototype() any  { return &dto.Reservation{} }
func (c CancelCommand) ResultPrototype() any   { return &dto.Reservation{} }
func (c ActivateCommand) ResultPrototype() any { return &dto.Reservation{} }
func (c CompleteCommand) ResultPrototype() any { return &dto.Reservation{} }

type transitionFunc[C TransitionCommand] func(ctx context.Context, c C, r *reservation.Reservation, now time.Time) (events.DomainEvent, error)

// TransitionHandler loads the reservation, applies one state change, saves it
// with the optimistic version check and records the returned event.
type TransitionHandler[C TransitionCommand] struct {
	Encoder outbox.EventEncoder
	Clock   Clock
	Logger  *slog.Logger
	apply   transitionFunc[C]
}

func (h *TransitionHandler[C]) Handle(ctx context.Context, cmd C) (*dto.Reservation, error) {
	id := cmd.Target()
	if id == "" {
		return nil, &reservation.ArgumentError{Field: "reservation_id", Reason: "must not be empty"}
	}
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	r, err := unit.Reservations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ev, err := h.apply(ctx, cmd, r, h.Clock.now())
	if err != nil {
		return nil, err
	}
	if err := unit.Reservations().Update(ctx, r); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), encoderOr(h.Encoder), ev); err != nil {
		return nil, err
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "reservation transitioned",
		slog.String("reservation_id", string(r.ID)),
		slog.String("event", ev.EventName()),
		slog.String("status", string(r.Status)),
	)
	out := dto.MapReservation(r)
	return &out, nil
}

// HandlerDeps are shared by every transition handler.
type HandlerDeps struct {
	Encoder outbox.EventEncoder
	Clock   Clock
	Logger  *slog.Logger
}

func newTransition[C TransitionCommand](deps HandlerDeps, apply transitionFunc[C]) *TransitionHandler[C] {
	return &TransitionHandler[C]{Encoder: deps.Encoder, Clock: deps.Clock, Logger: deps.Logger, apply: apply}
}

// NewConfirmHandler re-checks availability under the vehicle lock: pending
// holds do not block, so two overlapping holds may exist until one is confirmed.
func NewConfirmHandler(deps HandlerDeps) *TransitionHandler[ConfirmCommand] {
	return newTransition(deps, func(ctx context.Context, _ ConfirmCommand, r *reservation.Reservation, now time.Time) (events.DomainEvent, error) {
		if r.Status == reservation.StatusPending {
			unit, err := unitFrom(ctx)
			if err != nil {
				return nil, err
			}
			if err := unit.LockVehicle(ctx, r.VehicleID); err != nil {
				return nil, err
			}
			if err := availability.NewChecker(unit.Reservations()).EnsureAvailable(ctx, r.VehicleID, r.Period); err != nil {
				return nil, err
			}
		}
		return r.Confirm(now)
	})
}

func NewCancelHandler(deps HandlerDeps) *TransitionHandler[CancelCommand] {
	return newTransition(deps, func(_ context.Context, c CancelCommand, r *reservation.Reservation, now time.Time) (events.DomainEvent, error) {
		return r.Cancel(c.Reason, now)
	})
}

func NewActivateHandler(deps HandlerDeps) *TransitionHandler[ActivateCommand] {
	return newTransition(deps, func(_ context.Context, _ ActivateCommand, r *reservation.Reservation, now time.Time) (events.DomainEvent, error) {
		return r.MarkAsActive(now)
	})
}

func NewCompleteHandler(deps HandlerDeps) *TransitionHandler[CompleteCommand] {
	return newTransition(deps, func(_ context.Context, _ CompleteCommand, r *reservation.Reservation, now time.Time) (events.DomainEvent, error) {
		return r.Complete(now)
	})
}

var (
	_ commands.Handler[ConfirmCommand, *dto.Reservation] = (*TransitionHandler[ConfirmCommand])(nil)
	_ middleware.IdempotentCommand                       = CancelCommand{}
)
