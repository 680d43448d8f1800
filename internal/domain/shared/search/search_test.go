package search_test

import (
	"cmp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/domain/shared/search"
)

type car struct {
	id    int
	make  string
	price int
}

func fleet(n int) []car {
	makes := []string{"Audi", "BMW", "Seat"}
	out := make([]car, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, car{id: i, make: makes[i%len(makes)], price: (i * 37) % 100})
	}
	return out
}

var sortTable = search.SortTable[car]{
	Fields: map[string]search.Comparator[car]{
		"id":    func(a, b car) int { return cmp.Compare(a.id, b.id) },
		"make":  func(a, b car) int { return strings.Compare(a.make, b.make) },
		"price": func(a, b car) int { return cmp.Compare(a.price, b.price) },
	},
	Default:           "id",
	DefaultDescending: true,
	TieBreak:          func(a, b car) int { return cmp.Compare(a.id, b.id) },
}

func TestNewPaging_Defaults(t *testing.T) {
	assert.Equal(t, search.Paging{PageNumber: 1, PageSize: 20}, search.NewPaging(0, 0))
	assert.Equal(t, search.Paging{PageNumber: 3, PageSize: 100}, search.NewPaging(3, 500))
	assert.Equal(t, 40, search.NewPaging(3, 20).Offset())
}

func TestApply_PageSizesAndTotals(t *testing.T) {
	items := fleet(23)
	order, err := sortTable.Resolve(search.Sorting{Field: "id"})
	require.NoError(t, err)

	for pageSize := 1; pageSize <= 25; pageSize++ {
		totalPages := (23 + pageSize - 1) / pageSize
		for page := 1; page <= totalPages+1; page++ {
			got := search.Apply(items, nil, order, search.Paging{PageNumber: page, PageSize: pageSize})

			assert.Equal(t, 23, got.TotalCount)
			assert.Equal(t, totalPages, got.TotalPages)
			assert.Equal(t, page, got.PageNumber)
			assert.Equal(t, pageSize, got.PageSize)
			want := 0
			if remaining := 23 - (page-1)*pageSize; remaining > 0 {
				want = min(pageSize, remaining)
			}
			assert.Len(t, got.Items, want, "page %d size %d", page, pageSize)
		}
	}
}

func TestApply_BeyondLastPage_IsEmpty(t *testing.T) {
	got := search.Apply(fleet(5), nil, nil, search.Paging{PageNumber: 9, PageSize: 2})

	assert.Empty(t, got.Items)
	assert.NotNil(t, got.Items)
	assert.Equal(t, 5, got.TotalCount)
	assert.Equal(t, 3, got.TotalPages)
}

func TestApply_EmptyResultEchoesPaging(t *testing.T) {
	got := search.Apply([]car{}, nil, nil, search.Paging{PageNumber: 4, PageSize: 7})

	assert.Equal(t, 0, got.TotalCount)
	assert.Equal(t, 0, got.TotalPages)
	assert.Equal(t, 4, got.PageNumber)
	assert.Equal(t, 7, got.PageSize)
}

func TestApply_TotalCountIsPostFilter(t *testing.T) {
	isBMW := search.Predicate[car](func(c car) bool { return c.make == "BMW" })

	got := search.Apply(fleet(30), []search.Predicate[car]{isBMW}, nil, search.Paging{PageNumber: 1, PageSize: 3})

	assert.Equal(t, 10, got.TotalCount)
	assert.Len(t, got.Items, 3)
	for _, c := range got.Items {
		assert.Equal(t, "BMW", c.make)
	}
}

func TestWhereIf_SkipsAbsentFilters(t *testing.T) {
	var makeFilter string
	preds := []search.Predicate[car]{
		search.WhereIf(makeFilter != "", func(c car) bool { return c.make == makeFilter }),
	}

	got := search.Apply(fleet(9), preds, nil, search.Paging{PageNumber: 1, PageSize: 50})

	assert.Equal(t, 9, got.TotalCount)
}

func TestInRange_IndependentBounds(t *testing.T) {
	lo, hi := 20, 60
	get := func(c car) int { return c.price }
	items := fleet(40)

	onlyMin := search.Apply(items, []search.Predicate[car]{search.InRange(search.Bounds[int]{Min: &lo}, get, cmp.Compare[int])}, nil, search.NewPaging(1, 100))
	onlyMax := search.Apply(items, []search.Predicate[car]{search.InRange(search.Bounds[int]{Max: &hi}, get, cmp.Compare[int])}, nil, search.NewPaging(1, 100))
	both := search.Apply(items, []search.Predicate[car]{search.InRange(search.Bounds[int]{Min: &lo, Max: &hi}, get, cmp.Compare[int])}, nil, search.NewPaging(1, 100))

	for _, c := range onlyMin.Items {
		assert.GreaterOrEqual(t, c.price, lo)
	}
	for _, c := range onlyMax.Items {
		assert.LessOrEqual(t, c.price, hi)
	}
	for _, c := range both.Items {
		assert.True(t, c.price >= lo && c.price <= hi)
	}
	assert.Nil(t, search.InRange(search.Bounds[int]{}, get, cmp.Compare[int]))
}

func TestSortTable_CaseInsensitiveAndDirection(t *testing.T) {
	order, err := sortTable.Resolve(search.Sorting{Field: "PRICE", Descending: true})
	require.NoError(t, err)

	got := search.Apply(fleet(12), nil, order, search.NewPaging(1, 100))

	for i := 1; i < len(got.Items); i++ {
		prev, cur := got.Items[i-1], got.Items[i]
		assert.GreaterOrEqual(t, prev.price, cur.price)
		if prev.price == cur.price {
			assert.Less(t, prev.id, cur.id, "tie-break is ascending id")
		}
	}
}

func TestSortTable_EmptyFieldUsesDefault(t *testing.T) {
	order, err := sortTable.Resolve(search.Sorting{})
	require.NoError(t, err)

	got := search.Apply(fleet(4), nil, order, search.NewPaging(1, 10))

	require.Len(t, got.Items, 4)
	assert.Equal(t, 4, got.Items[0].id, "default is id descending")
}

func TestSortTable_UnknownFieldIsRejected(t *testing.T) {
	_, err := sortTable.Resolve(search.Sorting{Field: "colour"})

	require.ErrorIs(t, err, search.ErrUnknownSortField)
	var unknown *search.UnknownSortFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"id", "make", "price"}, unknown.Allowed)
}
