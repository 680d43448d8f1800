package reservation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
)

type ID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Operation names reported in TransitionError.
const (
	OpConfirm  = "confirm"
	OpCancel   = "cancel"
	OpActivate = "activate"
	OpComplete = "complete"
)

// AllStatuses lists statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusActive, StatusCompleted, StatusCancelled}
}

// ParseStatus accepts any casing.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllStatuses() {
		if s == known {
			return s, nil
		}
	}
	return "", &ArgumentError{Field: "status", Reason: "unknown status " + raw}
}

// IsTerminal reports whether no transition leaves s. Active still completes.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// BlocksVehicle reports whether a reservation in s occupies its vehicle.
func (s Status) BlocksVehicle() bool {
	return s == StatusConfirmed || s == StatusActive
}

type Reservation struct {
	ID                 ID
	VehicleID          string
	CustomerID         string
	Period             period.BookingPeriod
	PickupLocation     string
	DropoffLocation    string
	TotalPrice         money.Money
	Status             Status
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ConfirmedAt        *time.Time
	ActivatedAt        *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	Version            int64
}

type Repository interface {
	FindByID(ctx context.Context, id ID) (*Reservation, error)
	Add(ctx context.Context, r *Reservation) error
	// Update persists r if the stored version equals r.Version and bumps it.
	Update(ctx context.Context, r *Reservation) error
	// SearchOverlapping returns reservations in one of statuses whose period
	// overlaps p. An empty vehicleID matches every vehicle.
	SearchOverlapping(ctx context.Context, vehicleID string, p period.BookingPeriod, statuses []Status) ([]*Reservation, error)
	SearchPaged(ctx context.Context, params SearchParams) (search.Page[*Reservation], error)
}

type CreateParams struct {
	ID              ID
	VehicleID       string
	CustomerID      string
	Period          period.BookingPeriod
	PickupLocation  string
	DropoffLocation string
	TotalPrice      money.Money
	CreatedAt       time.Time
}

// Create is the only way to start a reservation. Availability is the caller's
// concern and must be checked in the same unit of work.
func Create(params CreateParams) (*Reservation, ReservationCreated, error) {
	vehicleID := strings.TrimSpace(params.VehicleID)
	customerID := strings.TrimSpace(params.CustomerID)
	switch {
	case vehicleID == "":
		return nil, ReservationCreated{}, &ArgumentError{Field: "vehicle_id", Reason: "must not be empty"}
	case customerID == "":
		return nil, ReservationCreated{}, &ArgumentError{Field: "customer_id", Reason: "must not be empty"}
	case params.Period.IsZero():
		return nil, ReservationCreated{}, &ArgumentError{Field: "period", Reason: "must be set"}
	case params.TotalPrice.IsNegative():
		return nil, ReservationCreated{}, &ArgumentError{Field: "total_price", Reason: "must not be negative"}
	}
	id := params.ID
	if id == "" {
		id = ID(uuid.NewString())
	}
	now := params.CreatedAt.UTC()
	if params.CreatedAt.IsZero() {
		now = time.Now().UTC()
	}
	pickup := strings.ToUpper(strings.TrimSpace(params.PickupLocation))
	dropoff := strings.ToUpper(strings.TrimSpace(params.DropoffLocation))
	if dropoff == "" {
		dropoff = pickup
	}
	r := &Reservation{
		ID:              id,
		VehicleID:       vehicleID,
		CustomerID:      customerID,
		Period:          params.Period,
		PickupLocation:  pickup,
		DropoffLocation: dropoff,
		TotalPrice:      params.TotalPrice,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return r, ReservationCreated{
		ReservationID: r.ID,
		VehicleID:     r.VehicleID,
		CustomerID:    r.CustomerID,
		Period:        r.Period,
		TotalPrice:    r.TotalPrice,
		At:            now,
	}, nil
}

func (r *Reservation) Confirm(now time.Time) (ReservationConfirmed, error) {
	if r.Status != StatusPending {
		return ReservationConfirmed{}, r.transitionError(OpConfirm, "")
	}
	at := r.touch(now)
	r.Status = StatusConfirmed
	r.ConfirmedAt = &at
	return ReservationConfirmed{
		ReservationID: r.ID,
		VehicleID:     r.VehicleID,
		CustomerID:    r.CustomerID,
		Period:        r.Period,
		TotalPrice:    r.TotalPrice,
		At:            at,
	}, nil
}

// Cancel accepts an empty reason.
func (r *Reservation) Cancel(reason string, now time.Time) (ReservationCancelled, error) {
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return ReservationCancelled{}, r.transitionError(OpCancel, "")
	}
	previous := r.Status
	at := r.touch(now)
	r.Status = StatusCancelled
	r.CancelledAt = &at
	r.CancellationReason = strings.TrimSpace(reason)
	return ReservationCancelled{
		ReservationID:  r.ID,
		VehicleID:      r.VehicleID,
		CustomerID:     r.CustomerID,
		PreviousStatus: previous,
		Reason:         r.CancellationReason,
		At:             at,
	}, nil
}

// MarkAsActive hands the vehicle over. Allowed from the pickup date on.
func (r *Reservation) MarkAsActive(now time.Time) (ReservationActivated, error) {
	if r.Status != StatusConfirmed {
		return ReservationActivated{}, r.transitionError(OpActivate, "")
	}
	if !r.Period.HasStarted(now) {
		return ReservationActivated{}, r.transitionError(OpActivate, "pickup date "+r.Period.PickupDate().Format(period.DateLayout)+" not reached")
	}
	at := r.touch(now)
	r.Status = StatusActive
	r.ActivatedAt = &at
	return ReservationActivated{ReservationID: r.ID, VehicleID: r.VehicleID, CustomerID: r.CustomerID, At: at}, nil
}

func (r *Reservation) Complete(now time.Time) (ReservationCompleted, error) {
	if r.Status != StatusActive {
		return ReservationCompleted{}, r.transitionError(OpComplete, "")
	}
	at := r.touch(now)
	r.Status = StatusCompleted
	r.CompletedAt = &at
	return ReservationCompleted{ReservationID: r.ID, VehicleID: r.VehicleID, CustomerID: r.CustomerID, At: at}, nil
}

func (r *Reservation) touch(now time.Time) time.Time {
	at := now.UTC()
	r.UpdatedAt = at
	return at
}

func (r *Reservation) transitionError(op, reason string) *TransitionError {
	return &TransitionError{ReservationID: r.ID, Status: r.Status, Operation: op, Reason: reason}
}
