package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/period"
)

var ErrVehicleAlreadyBooked = errors.New("availability: vehicle already booked for period")

// VehicleBookedError lists the reservations that hold the vehicle.
type VehicleBookedError struct {
	VehicleID      string
	Period         period.BookingPeriod
	ReservationIDs []reservation.ID
}

func (e *VehicleBookedError) Error() string {
	ids := make([]string, 0, len(e.ReservationIDs))
	for _, id := range e.ReservationIDs {
		ids = append(ids, string(id))
	}
	return fmt.Sprintf("availability: vehicle %s already booked for %s by %s", e.VehicleID, e.Period, strings.Join(ids, ","))
}

func (e *VehicleBookedError) Is(target error) bool { return target == ErrVehicleAlreadyBooked }

// BlockingStatuses are the statuses that commit a vehicle. Pending holds and
// finished reservations never block.
func BlockingStatuses() []reservation.Status {
	return []reservation.Status{reservation.StatusConfirmed, reservation.StatusActive}
}

// OverlapFinder is the slice of the reservation store the checker needs.
type OverlapFinder interface {
	SearchOverlapping(ctx context.Context, vehicleID string, p period.BookingPeriod, statuses []reservation.Status) ([]*reservation.Reservation, error)
}

// Conflicts returns the reservations among existing that block vehicleID
// during p. An empty vehicleID considers every vehicle.
func Conflicts(existing []*reservation.Reservation, vehicleID string, p period.BookingPeriod) []*reservation.Reservation {
	var out []*reservation.Reservation
	for _, r := range existing {
		if r == nil || !r.Status.BlocksVehicle() {
			continue
		}
		if vehicleID != "" && r.VehicleID != vehicleID {
			continue
		}
		if r.Period.OverlapsWith(p) {
			out = append(out, r)
		}
	}
	return out
}

// BookedVehicleIDs is the sorted, de-duplicated set of vehicles held by conflicts.
func BookedVehicleIDs(conflicts []*reservation.Reservation) []string {
	ids := make([]string, 0, len(conflicts))
	for _, r := range conflicts {
		ids = append(ids, r.VehicleID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

type Checker struct {
	finder OverlapFinder
}

func NewChecker(finder OverlapFinder) *Checker {
	return &Checker{finder: finder}
}

// BookedVehicles returns ids of vehicles committed during p. Absence from the
// result means available. vehicleID narrows the check to one vehicle.
func (c *Checker) BookedVehicles(ctx context.Context, p period.BookingPeriod, vehicleID string) ([]string, error) {
	conflicts, err := c.conflicts(ctx, vehicleID, p)
	if err != nil {
		return nil, err
	}
	return BookedVehicleIDs(conflicts), nil
}

// IsAvailable reports whether vehicleID is free for the whole of p.
func (c *Checker) IsAvailable(ctx context.Context, vehicleID string, p period.BookingPeriod) (bool, error) {
	conflicts, err := c.conflicts(ctx, vehicleID, p)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// EnsureAvailable fails with VehicleBookedError when vehicleID is held during p.
// Callers run it in the same unit of work as the write that follows.
func (c *Checker) EnsureAvailable(ctx context.Context, vehicleID string, p period.BookingPeriod) error {
	if strings.TrimSpace(vehicleID) == "" {
		return &reservation.ArgumentError{Field: "vehicle_id", Reason: "must not be empty"}
	}
	conflicts, err := c.conflicts(ctx, vehicleID, p)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]reservation.ID, 0, len(conflicts))
	for _, r := range conflicts {
		ids = append(ids, r.ID)
	}
	slices.Sort(ids)
	return &VehicleBookedError{VehicleID: vehicleID, Period: p, ReservationIDs: ids}
}

func (c *Checker) conflicts(ctx context.Context, vehicleID string, p period.BookingPeriod) ([]*reservation.Reservation, error) {
	if p.IsZero() {
		return nil, &period.InvalidPeriodError{Reason: period.ReasonMissingEndpoint}
	}
	candidates, err := c.finder.SearchOverlapping(ctx, vehicleID, p, BlockingStatuses())
	if err != nil {
		return nil, err
	}
	// Stores may over-fetch; the predicate here is authoritative.
	return Conflicts(candidates, vehicleID, p), nil
}
