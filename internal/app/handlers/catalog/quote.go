package catalog

import (
	"context"
	"strings"
	"time"

	"rentacar/internal/app/dto"
	"rentacar/internal/app/queries"
	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/vehicle"
)

// QuoteQuery prices a rental without booking it. VehicleID, when given,
// supplies the category and default pickup location.
type QuoteQuery struct {
	VehicleID      string
	CategoryCode   string
	PickupLocation string
	PickupDate     time.Time
	ReturnDate     time.Time
}

func (q QuoteQuery) Key() string { return QuoteKey }

type QuoteHandler struct {
	Vehicles vehicle.Catalog
	Pricing  pricing.Calculator
	Now      func() time.Time
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.QuoteDTO, error) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	bp, err := period.New(q.PickupDate, q.ReturnDate, now)
	if err != nil {
		return dto.QuoteDTO{}, err
	}
	category := strings.TrimSpace(q.CategoryCode)
	location := strings.TrimSpace(q.PickupLocation)
	if id := strings.TrimSpace(q.VehicleID); id != "" {
		v, err := h.Vehicles.ByID(ctx, id)
		if err != nil {
			return dto.QuoteDTO{}, err
		}
		category = v.CategoryCode
		if location == "" {
			location = v.LocationCode
		}
	}
	if category == "" {
		return dto.QuoteDTO{}, &reservation.ArgumentError{Field: "category_code", Reason: "vehicle_id or category_code required"}
	}
	quote, err := h.Pricing.CalculatePrice(ctx, category, bp, location)
	if err != nil {
		return dto.QuoteDTO{}, err
	}
	return dto.MapQuote(quote), nil
}

var _ queries.Handler[QuoteQuery, dto.QuoteDTO] = (*QuoteHandler)(nil)
