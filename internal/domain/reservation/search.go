package reservation

import (
	"cmp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentacar/internal/domain/shared/search"
)

// Sortable fields.
const (
	SortCreatedAt  = "createdat"
	SortPickupDate = "pickupdate"
	SortReturnDate = "returndate"
	SortTotalPrice = "totalprice"
	SortStatus     = "status"
)

// Filter fields are optional; zero values do not constrain the result.
type Filter struct {
	CustomerID     string
	VehicleID      string
	Statuses       []Status
	PickupLocation string
	PickupDate     search.Bounds[time.Time]
	GrossPrice     search.Bounds[decimal.Decimal]
}

type SearchParams struct {
	Filter  Filter
	Sorting search.Sorting
	Paging  search.Paging
}

// SortTable orders reservations; ties fall back to id so pages are stable.
var SortTable = search.SortTable[*Reservation]{
	Fields: map[string]search.Comparator[*Reservation]{
		SortCreatedAt: func(a, b *Reservation) int { return a.CreatedAt.Compare(b.CreatedAt) },
		SortPickupDate: func(a, b *Reservation) int {
			return a.Period.PickupDate().Compare(b.Period.PickupDate())
		},
		SortReturnDate: func(a, b *Reservation) int {
			return a.Period.ReturnDate().Compare(b.Period.ReturnDate())
		},
		SortTotalPrice: func(a, b *Reservation) int { return a.TotalPrice.Gross().Cmp(b.TotalPrice.Gross()) },
		SortStatus:     func(a, b *Reservation) int { return strings.Compare(string(a.Status), string(b.Status)) },
	},
	Default:           SortCreatedAt,
	DefaultDescending: true,
	TieBreak:          func(a, b *Reservation) int { return cmp.Compare(a.ID, b.ID) },
}

// Predicates turns the filter into engine predicates.
func (f Filter) Predicates() []search.Predicate[*Reservation] {
	customerID := strings.TrimSpace(f.CustomerID)
	vehicleID := strings.TrimSpace(f.VehicleID)
	location := strings.ToUpper(strings.TrimSpace(f.PickupLocation))
	return []search.Predicate[*Reservation]{
		search.WhereIf(customerID != "", func(r *Reservation) bool { return r.CustomerID == customerID }),
		search.WhereIf(vehicleID != "", func(r *Reservation) bool { return r.VehicleID == vehicleID }),
		search.WhereIf(len(f.Statuses) > 0, func(r *Reservation) bool { return hasStatus(f.Statuses, r.Status) }),
		search.WhereIf(location != "", func(r *Reservation) bool { return r.PickupLocation == location }),
		search.InRange(f.PickupDate, func(r *Reservation) time.Time { return r.Period.PickupDate() }, time.Time.Compare),
		search.InRange(f.GrossPrice, func(r *Reservation) decimal.Decimal { return r.TotalPrice.Gross() }, decimal.Decimal.Cmp),
	}
}

// Search runs the in-memory pipeline over items.
func Search(items []*Reservation, params SearchParams) (search.Page[*Reservation], error) {
	order, err := SortTable.Resolve(params.Sorting)
	if err != nil {
		return search.Page[*Reservation]{}, err
	}
	return search.Apply(items, params.Filter.Predicates(), order, params.Paging), nil
}

func hasStatus(statuses []Status, s Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
