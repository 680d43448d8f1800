package catalog

import (
	"context"
	"time"

	"rentacar/internal/app/dto"
	"rentacar/internal/app/queries"
	"rentacar/internal/domain/customer"
	"rentacar/internal/domain/shared/search"
)

type CustomersQuery struct {
	Name       string
	Email      string
	MinAge     *int
	MaxAge     *int
	SortField  string
	Descending bool
	PageNumber int
	PageSize   int
}

func (q CustomersQuery) Key() string { return CustomersKey }

type CustomersHandler struct {
	Customers customer.Directory
	Now       func() time.Time
}

func (h *CustomersHandler) Handle(ctx context.Context, q CustomersQuery) (dto.Page[dto.Customer], error) {
	today := time.Now().UTC()
	if h.Now != nil {
		today = h.Now().UTC()
	}
	page, err := h.Customers.Search(ctx, customer.SearchParams{
		Filter: customer.Filter{
			Name:  q.Name,
			Email: q.Email,
			Age:   search.Bounds[int]{Min: q.MinAge, Max: q.MaxAge},
			Today: today,
		},
		Sorting: search.Sorting{Field: q.SortField, Descending: q.Descending},
		Paging:  search.NewPaging(q.PageNumber, q.PageSize),
	})
	if err != nil {
		return dto.Page[dto.Customer]{}, err
	}
	return dto.MapPage(page, dto.MapCustomer(today)), nil
}

var _ queries.Handler[CustomersQuery, dto.Page[dto.Customer]] = (*CustomersHandler)(nil)
