package vehicle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/domain/shared/search"
	"rentacar/internal/domain/vehicle"
)

var created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fleet() []vehicle.Vehicle {
	return []vehicle.Vehicle{
		{ID: "v1", Make: "BMW", Model: "320d", Year: 2021, CategoryCode: "MIDSIZE", LocationCode: "MUC", Mileage: 42000, Status: vehicle.StatusAvailable, CreatedAt: created},
		{ID: "v2", Make: "bmw", Model: "X1", Year: 2023, CategoryCode: "SUV", LocationCode: "MUC", Mileage: 12000, Status: vehicle.StatusAvailable, CreatedAt: created.AddDate(0, 0, 1)},
		{ID: "v3", Make: "Audi", Model: "A3", Year: 2019, CategoryCode: "COMPACT", LocationCode: "BER", Mileage: 88000, Status: vehicle.StatusMaintenance, CreatedAt: created.AddDate(0, 0, 2)},
		{ID: "v4", Make: "Seat", Model: "Leon", Year: 2022, CategoryCode: "COMPACT", LocationCode: "MUC", Mileage: 30500, Status: vehicle.StatusAvailable, CreatedAt: created.AddDate(0, 0, 3)},
	}
}

func idsOf(items []vehicle.Vehicle) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		out = append(out, v.ID)
	}
	return out
}

func TestSearch_MakeIsCaseInsensitive(t *testing.T) {
	page, err := vehicle.Search(fleet(), vehicle.SearchParams{
		Filter:  vehicle.Filter{Make: "BMW"},
		Sorting: search.Sorting{Field: "year"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, idsOf(page.Items))
}

func TestSearch_RangesAndLocation(t *testing.T) {
	minYear, maxMileage := 2021, 40000
	page, err := vehicle.Search(fleet(), vehicle.SearchParams{
		Filter: vehicle.Filter{
			LocationCode: "muc",
			Year:         search.Bounds[int]{Min: &minYear},
			Mileage:      search.Bounds[int]{Max: &maxMileage},
		},
		Sorting: search.Sorting{Field: "mileage", Descending: true},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"v4", "v2"}, idsOf(page.Items))
}

func TestSearch_ExcludesBookedVehicles(t *testing.T) {
	page, err := vehicle.Search(fleet(), vehicle.SearchParams{
		Filter: vehicle.Filter{Status: vehicle.StatusAvailable, ExcludeIDs: []string{"v1", "v4"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, idsOf(page.Items))
	assert.Equal(t, 1, page.TotalCount)
}

func TestSearch_DefaultNewestFirst(t *testing.T) {
	page, err := vehicle.Search(fleet(), vehicle.SearchParams{Paging: search.NewPaging(1, 2)})

	require.NoError(t, err)
	assert.Equal(t, []string{"v4", "v3"}, idsOf(page.Items))
	assert.Equal(t, 2, page.TotalPages)
}

func TestRentable(t *testing.T) {
	assert.True(t, vehicle.Vehicle{Status: vehicle.StatusAvailable}.Rentable())
	assert.False(t, vehicle.Vehicle{Status: vehicle.StatusRetired}.Rentable())
}
