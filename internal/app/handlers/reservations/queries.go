package reservations

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentacar/internal/app/dto"
	"rentacar/internal/app/queries"
	"rentacar/internal/app/uow"
	"rentacar/internal/domain/reservation"
	"rentacar/internal/domain/shared/search"
)

type GetQuery struct {
	ReservationID string
}

func (q GetQuery) Key() string { return GetKey }

type GetHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetHandler) Handle(ctx context.Context, q GetQuery) (dto.Reservation, error) {
	id := reservation.ID(strings.TrimSpace(q.ReservationID))
	if id == "" {
		return dto.Reservation{}, &reservation.ArgumentError{Field: "reservation_id", Reason: "must not be empty"}
	}
	unit, ctx, release, err := uow.ReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Reservation{}, err
	}
	defer release()
	r, err := unit.Reservations().FindByID(ctx, id)
	if err != nil {
		return dto.Reservation{}, err
	}
	return dto.MapReservation(r), nil
}

// SearchQuery carries optional filters; zero values do not constrain.
type SearchQuery struct {
	CustomerID     string
	VehicleID      string
	Statuses       []string
	PickupLocation string
	PickupFrom     *time.Time
	PickupTo       *time.Time
	MinGross       *decimal.Decimal
	MaxGross       *decimal.Decimal
	SortField      string
	Descending     bool
	PageNumber     int
	PageSize       int
}

func (q SearchQuery) Key() string { return SearchKey }

// Params converts the query into domain search parameters.
func (q SearchQuery) Params() (reservation.SearchParams, error) {
	statuses := make([]reservation.Status, 0, len(q.Statuses))
	for _, raw := range q.Statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		s, err := reservation.ParseStatus(raw)
		if err != nil {
			return reservation.SearchParams{}, err
		}
		statuses = append(statuses, s)
	}
	sorting := search.Sorting{Field: q.SortField, Descending: q.Descending}
	if _, err := reservation.SortTable.Normalize(sorting); err != nil {
		return reservation.SearchParams{}, err
	}
	return reservation.SearchParams{
		Filter: reservation.Filter{
			CustomerID:     q.CustomerID,
			VehicleID:      q.VehicleID,
			Statuses:       statuses,
			PickupLocation: q.PickupLocation,
			PickupDate:     search.Bounds[time.Time]{Min: q.PickupFrom, Max: q.PickupTo},
			GrossPrice:     search.Bounds[decimal.Decimal]{Min: q.MinGross, Max: q.MaxGross},
		},
		Sorting: sorting,
		Paging:  search.NewPaging(q.PageNumber, q.PageSize),
	}, nil
}

type SearchHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *SearchHandler) Handle(ctx context.Context, q SearchQuery) (dto.Page[dto.Reservation], error) {
	params, err := q.Params()
	if err != nil {
		return dto.Page[dto.Reservation]{}, err
	}
	unit, ctx, release, err := uow.ReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.Page[dto.Reservation]{}, err
	}
	defer release()
	page, err := unit.Reservations().SearchPaged(ctx, params)
	if err != nil {
		return dto.Page[dto.Reservation]{}, err
	}
	return dto.MapPage(page, dto.MapReservation), nil
}

var (
	_ queries.Handler[GetQuery, dto.Reservation]              = (*GetHandler)(nil)
	_ queries.Handler[SearchQuery, dto.Page[dto.Reservation]] = (*SearchHandler)(nil)
)
