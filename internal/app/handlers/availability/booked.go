package availability

import (
	"context"
	"strings"
	"time"

	"rentacar/internal/app/dto"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	domainavailability "rentacar/internal/domain/availability"
	"rentacar/internal/domain/shared/period"
)

const BookedKey = "availability.booked"

// BookedQuery asks which vehicles are committed for a period. VehicleID narrows
// the answer to one vehicle.
type BookedQuery struct {
	PickupDate time.Time
	ReturnDate time.Time
	VehicleID  string
}

func (q BookedQuery) Key() string { return BookedKey }

type BookedHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *BookedHandler) Handle(ctx context.Context, q BookedQuery) (dto.Availability, error) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	bp, err := period.New(q.PickupDate, q.ReturnDate, now)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, ctx, release, err := uow.ReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	defer release()

	vehicleID := strings.TrimSpace(q.VehicleID)
	ids, err := domainavailability.NewChecker(unit.Reservations()).BookedVehicles(ctx, bp, vehicleID)
	if err != nil {
		return dto.Availability{}, err
	}
	out := dto.Availability{
		PickupDate:       bp.PickupDate().Format(period.DateLayout),
		ReturnDate:       bp.ReturnDate().Format(period.DateLayout),
		BookedVehicleIDs: ids,
	}
	if vehicleID != "" {
		free := len(ids) == 0
		out.Available = &free
	}
	return out, nil
}

var _ queries.Handler[BookedQuery, dto.Availability] = (*BookedHandler)(nil)
