package vehicle

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"time"

	"rentacar/internal/domain/shared/search"
)

var (
	ErrNotFound    = errors.New("vehicle: not found")
	ErrNotRentable = errors.New("vehicle: not rentable")
)

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusMaintenance Status = "MAINTENANCE"
	StatusRetired     Status = "RETIRED"
)

type Vehicle struct {
	ID           string
	Plate        string
	Make         string
	Model        string
	Year         int
	CategoryCode string
	LocationCode string
	Mileage      int
	Status       Status
	CreatedAt    time.Time
}

// Rentable reports whether the vehicle may take new reservations at all.
func (v Vehicle) Rentable() bool { return v.Status == StatusAvailable }

// Catalog is the read side for vehicles.
type Catalog interface {
	ByID(ctx context.Context, id string) (Vehicle, error)
	Search(ctx context.Context, params SearchParams) (search.Page[Vehicle], error)
}

// Filter fields are optional. ExcludeIDs carries vehicles booked for the
// requested period when the caller asks for availability.
type Filter struct {
	CategoryCode string
	LocationCode string
	Make         string
	Status       Status
	Year         search.Bounds[int]
	Mileage      search.Bounds[int]
	ExcludeIDs   []string
}

type SearchParams struct {
	Filter  Filter
	Sorting search.Sorting
	Paging  search.Paging
}

var SortTable = search.SortTable[Vehicle]{
	Fields: map[string]search.Comparator[Vehicle]{
		"createdat": func(a, b Vehicle) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"make":      func(a, b Vehicle) int { return cmp.Compare(strings.ToLower(a.Make), strings.ToLower(b.Make)) },
		"model":     func(a, b Vehicle) int { return cmp.Compare(strings.ToLower(a.Model), strings.ToLower(b.Model)) },
		"year":      func(a, b Vehicle) int { return cmp.Compare(a.Year, b.Year) },
		"mileage":   func(a, b Vehicle) int { return cmp.Compare(a.Mileage, b.Mileage) },
	},
	Default:           "createdat",
	DefaultDescending: true,
	TieBreak:          func(a, b Vehicle) int { return cmp.Compare(a.ID, b.ID) },
}

func (f Filter) Predicates() []search.Predicate[Vehicle] {
	category := strings.ToUpper(strings.TrimSpace(f.CategoryCode))
	location := strings.ToUpper(strings.TrimSpace(f.LocationCode))
	brand := strings.TrimSpace(f.Make)
	excluded := idSet(f.ExcludeIDs)
	return []search.Predicate[Vehicle]{
		search.WhereIf(category != "", func(v Vehicle) bool { return strings.EqualFold(v.CategoryCode, category) }),
		search.WhereIf(location != "", func(v Vehicle) bool { return strings.EqualFold(v.LocationCode, location) }),
		search.WhereIf(brand != "", func(v Vehicle) bool { return strings.EqualFold(v.Make, brand) }),
		search.WhereIf(f.Status != "", func(v Vehicle) bool { return v.Status == f.Status }),
		search.InRange(f.Year, func(v Vehicle) int { return v.Year }, cmp.Compare[int]),
		search.InRange(f.Mileage, func(v Vehicle) int { return v.Mileage }, cmp.Compare[int]),
		search.WhereIf(len(excluded) > 0, func(v Vehicle) bool { _, booked := excluded[v.ID]; return !booked }),
	}
}

// Search runs the in-memory pipeline over items.
func Search(items []Vehicle, params SearchParams) (search.Page[Vehicle], error) {
	order, err := SortTable.Resolve(params.Sorting)
	if err != nil {
		return search.Page[Vehicle]{}, err
	}
	return search.Apply(items, params.Filter.Predicates(), order, params.Paging), nil
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
