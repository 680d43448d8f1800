package customer

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"time"

	"rentacar/internal/domain/shared/search"
)

var ErrNotFound = errors.New("customer: not found")

type Customer struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth time.Time
	CreatedAt   time.Time
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Age in whole years on today's calendar date.
func (c Customer) Age(today time.Time) int {
	if c.DateOfBirth.IsZero() {
		return 0
	}
	by, bm, bd := c.DateOfBirth.UTC().Date()
	ty, tm, td := today.UTC().Date()
	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	return max(age, 0)
}

// Directory is the read side for customers.
type Directory interface {
	ByID(ctx context.Context, id string) (Customer, error)
	Search(ctx context.Context, params SearchParams) (search.Page[Customer], error)
}

// Filter fields are optional. Text matches are case-insensitive substrings.
type Filter struct {
	Name  string
	Email string
	Age   search.Bounds[int]
	// Today anchors the age filter; zero means time.Now.
	Today time.Time
}

type SearchParams struct {
	Filter  Filter
	Sorting search.Sorting
	Paging  search.Paging
}

var SortTable = search.SortTable[Customer]{
	Fields: map[string]search.Comparator[Customer]{
		"createdat":   func(a, b Customer) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"lastname":    func(a, b Customer) int { return cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)) },
		"firstname":   func(a, b Customer) int { return cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)) },
		"email":       func(a, b Customer) int { return cmp.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email)) },
		"dateofbirth": func(a, b Customer) int { return a.DateOfBirth.Compare(b.DateOfBirth) },
	},
	Default:           "createdat",
	DefaultDescending: true,
	TieBreak:          func(a, b Customer) int { return cmp.Compare(a.ID, b.ID) },
}

func (f Filter) Predicates() []search.Predicate[Customer] {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	email := strings.ToLower(strings.TrimSpace(f.Email))
	today := f.Today
	if today.IsZero() {
		today = time.Now()
	}
	return []search.Predicate[Customer]{
		search.WhereIf(name != "", func(c Customer) bool {
			return strings.Contains(strings.ToLower(c.FullName()), name)
		}),
		search.WhereIf(email != "", func(c Customer) bool {
			return strings.Contains(strings.ToLower(c.Email), email)
		}),
		search.InRange(f.Age, func(c Customer) int { return c.Age(today) }, cmp.Compare[int]),
	}
}

func Search(items []Customer, params SearchParams) (search.Page[Customer], error) {
	order, err := SortTable.Resolve(params.Sorting)
	if err != nil {
		return search.Page[Customer]{}, err
	}
	return search.Apply(items, params.Filter.Predicates(), order, params.Paging), nil
}
