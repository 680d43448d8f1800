package catalog

import (
	"context"
	"strings"
	"time"

	"rentacar/internal/app/dto"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/availability"
	"rentacar/internal/domain/shared/period"
	"rentacar/internal/domain/shared/search"
	"rentacar/internal/domain/vehicle"
)

const (
	VehiclesKey  = "catalog.vehicles"
	CustomersKey = "catalog.customers"
	QuoteKey     = "pricing.quote"
)

type VehiclesQuery struct {
	CategoryCode string
	LocationCode string
	Make         string
	Status       string
	MinYear      *int
	MaxYear      *int
	MinMileage   *int
	MaxMileage   *int
	// AvailableFrom and AvailableTo, when both set, drop vehicles booked in that period.
	AvailableFrom *time.Time
	AvailableTo   *time.Time
	SortField     string
	Descending    bool
	PageNumber    int
	PageSize      int
}

func (q VehiclesQuery) Key() string { return VehiclesKey }

type VehiclesHandler struct {
	Vehicles   vehicle.Catalog
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *VehiclesHandler) Handle(ctx context.Context, q VehiclesQuery) (dto.Page[dto.Vehicle], error) {
	params := vehicle.SearchParams{
		Filter: vehicle.Filter{
			CategoryCode: q.CategoryCode,
			LocationCode: q.LocationCode,
			Make:         q.Make,
			Status:       vehicle.Status(strings.ToUpper(strings.TrimSpace(q.Status))),
			Year:         search.Bounds[int]{Min: q.MinYear, Max: q.MaxYear},
			Mileage:      search.Bounds[int]{Min: q.MinMileage, Max: q.MaxMileage},
		},
		Sorting: search.Sorting{Field: q.SortField, Descending: q.Descending},
		Paging:  search.NewPaging(q.PageNumber, q.PageSize),
	}
	if q.AvailableFrom != nil && q.AvailableTo != nil {
		booked, err := h.bookedFor(ctx, *q.AvailableFrom, *q.AvailableTo)
		if err != nil {
			return dto.Page[dto.Vehicle]{}, err
		}
		params.Filter.ExcludeIDs = booked
		if params.Filter.Status == "" {
			params.Filter.Status = vehicle.StatusAvailable
		}
	}
	page, err := h.Vehicles.Search(ctx, params)
	if err != nil {
		return dto.Page[dto.Vehicle]{}, err
	}
	return dto.MapPage(page, dto.MapVehicle), nil
}

func (h *VehiclesHandler) bookedFor(ctx context.Context, from, to time.Time) ([]string, error) {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	bp, err := period.New(from, to, now)
	if err != nil {
		return nil, err
	}
	unit, ctx, release, err := uow.ReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer release()
	return availability.NewChecker(unit.Reservations()).BookedVehicles(ctx, bp, "")
}

var _ queries.Handler[VehiclesQuery, dto.Page[dto.Vehicle]] = (*VehiclesHandler)(nil)
