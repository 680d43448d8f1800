package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/dto"
	"rentacar/internal/app/middleware"
	"rentacar/internal/app/outbox"
	"rentacar/internal/domain/availability"
	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/vehicle"
)

type CreateCommand struct {
	VehicleID       string
	CustomerID      string
	PickupDate      time.Time
	ReturnDate      time.Time
	PickupLocation  string
	DropoffLocation string
	IdempotencyKeyV string
}

func (c CreateCommand) Key() string            { return CreateKey }
func (c CreateCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CreateCommand) ResultPrototype() any   { return &dto.Reservation{} }

func (c CreateCommand) Validate() error {
	if strings.TrimSpace(c.VehicleID) == "" {
		return &reservation.ArgumentError{Field: "vehicle_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.CustomerID) == "" {
		return &reservation.ArgumentError{Field: "customer_id", Reason: "must not be empty"}
	}
	return nil
}

// CreateHandler books a vehicle. The vehicle lock, availability check and
// insert share the unit of work opened by the Transaction middleware.
type CreateHandler struct {
	Vehicles  vehicle.Catalog
	Customers customer.Directory
	Pricing   pricing.Calculator
	Encoder   outbox.EventEncoder
	Clock     Clock
	Logger    *slog.Logger
}

var ErrCreateHandlerMisconfigured = errors.New("reservations: create handler missing dependencies")

func (h *CreateHandler) Handle(ctx context.Context, cmd CreateCommand) (*dto.Reservation, error) {
	if h.Vehicles == nil || h.Customers == nil || h.Pricing == nil {
		return nil, ErrCreateHandlerMisconfigured
	}
	unit, err := unitFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := h.Clock.now()

	bp, err := period.New(cmd.PickupDate, cmd.ReturnDate, now)
	if err != nil {
		return nil, err
	}
	v, err := h.Vehicles.ByID(ctx, strings.TrimSpace(cmd.VehicleID))
	if err != nil {
		return nil, err
	}
	if !v.Rentable() {
		return nil, fmt.Errorf("%w: %s is %s", vehicle.ErrNotRentable, v.ID, v.Status)
	}
	c, err := h.Customers.ByID(ctx, strings.TrimSpace(cmd.CustomerID))
	if err != nil {
		return nil, err
	}
	pickupLocation := cmd.PickupLocation
	if strings.TrimSpace(pickupLocation) == "" {
		pickupLocation = v.LocationCode
	}

	if err := unit.LockVehicle(ctx, v.ID); err != nil {
		return nil, err
	}
	if err := availability.NewChecker(unit.Reservations()).EnsureAvailable(ctx, v.ID, bp); err != nil {
		return nil, err
	}
	quote, err := h.Pricing.CalculatePrice(ctx, v.CategoryCode, bp, pickupLocation)
	if err != nil {
		return nil, err
	}

	res, created, err := reservation.Create(reservation.CreateParams{
		VehicleID:       v.ID,
		CustomerID:      c.ID,
		Period:          bp,
		PickupLocation:  pickupLocation,
		DropoffLocation: cmd.DropoffLocation,
		TotalPrice:      quote.Total,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Reservations().Add(ctx, res); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), encoderOr(h.Encoder), created); err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "reservation created",
		slog.String("reservation_id", string(res.ID)),
		slog.String("vehicle_id", res.VehicleID),
		slog.String("period", bp.String()),
		slog.String("total", res.TotalPrice.String()),
	)
	out := dto.MapReservation(res)
	return &out, nil
}

func (h *CreateHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var (
	_ commands.Handler[CreateCommand, *dto.Reservation] = (*CreateHandler)(nil)
	_ middleware.IdempotentCommand                      = CreateCommand{}
	_ middleware.Validatable                            = CreateCommand{}
)
