// Package search implements the filter -> sort -> page pipeline shared by
// every catalog and reservation query.
package search

import (
	"errors"
	"slices"
	"sort"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrUnknownSortField = errors.New("search: unknown sort field")

// UnknownSortFieldError names the rejected field and the accepted ones.
type UnknownSortFieldError struct {
	Field   string
	Allowed []string
}

func (e *UnknownSortFieldError) Error() string {
	return "search: unknown sort field " + `"` + e.Field + `"` + " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
}

func (e *UnknownSortFieldError) Is(target error) bool {
	return target == ErrUnknownSortField
}

// Paging is 1-indexed.
type Paging struct {
	PageNumber int
	PageSize   int
}

// NewPaging applies defaults to non-positive values and caps the page size.
func NewPaging(pageNumber, pageSize int) Paging {
	p := Paging{PageNumber: 1, PageSize: DefaultPageSize}
	if pageNumber >= 1 {
		p.PageNumber = pageNumber
	}
	if pageSize >= 1 {
		p.PageSize = min(pageSize, MaxPageSize)
	}
	return p
}

// Normalized fills zero values the same way NewPaging does.
func (p Paging) Normalized() Paging {
	return NewPaging(p.PageNumber, p.PageSize)
}

// Offset returns the zero-based index of the first item on the page.
func (p Paging) Offset() int {
	return (p.PageNumber - 1) * p.PageSize
}

// Sorting asks for one field in one direction. An empty Field means "default".
type Sorting struct {
	Field      string
	Descending bool
}

// Page is one slice of a filtered, sorted result.
type Page[T any] struct {
	Items      []T
	TotalCount int
	PageNumber int
	PageSize   int
	TotalPages int
}

// NewPage echoes paging back and derives TotalPages = ceil(total/size).
func NewPage[T any](items []T, totalCount int, paging Paging) Page[T] {
	paging = paging.Normalized()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		TotalCount: totalCount,
		PageNumber: paging.PageNumber,
		PageSize:   paging.PageSize,
		TotalPages: (totalCount + paging.PageSize - 1) / paging.PageSize,
	}
}

// MapPage converts items while keeping page metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	items := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, fn(item))
	}
	return Page[U]{
		Items:      items,
		TotalCount: p.TotalCount,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

// Predicate keeps an item when it returns true. A nil Predicate is a no-op.
type Predicate[T any] func(T) bool

// WhereIf returns pred only when cond holds, so optional filters compose without branching.
func WhereIf[T any](cond bool, pred func(T) bool) Predicate[T] {
	if !cond {
		return nil
	}
	return pred
}

// Bounds is an optional closed interval; each side applies independently.
type Bounds[V any] struct {
	Min *V
	Max *V
}

func (b Bounds[V]) IsZero() bool {
	return b.Min == nil && b.Max == nil
}

// InRange filters on get(item) within b using compare. Returns nil when b is empty.
func InRange[T, V any](b Bounds[V], get func(T) V, compare func(a, b V) int) Predicate[T] {
	if b.IsZero() {
		return nil
	}
	return func(item T) bool {
		v := get(item)
		if b.Min != nil && compare(v, *b.Min) < 0 {
			return false
		}
		if b.Max != nil && compare(v, *b.Max) > 0 {
			return false
		}
		return true
	}
}

// Comparator orders two items like cmp.Compare.
type Comparator[T any] func(a, b T) int

// SortTable maps lower-case field names to comparators.
type SortTable[T any] struct {
	Fields            map[string]Comparator[T]
	Default           string
	DefaultDescending bool
	// TieBreak orders items whose primary key compares equal; always ascending.
	TieBreak Comparator[T]
}

// Normalize resolves the field case-insensitively. An empty field selects the
// default key and direction; an unknown field is rejected.
func (t SortTable[T]) Normalize(s Sorting) (Sorting, error) {
	field := strings.ToLower(strings.TrimSpace(s.Field))
	if field == "" {
		return Sorting{Field: t.Default, Descending: t.DefaultDescending}, nil
	}
	if _, ok := t.Fields[field]; !ok {
		return Sorting{}, &UnknownSortFieldError{Field: s.Field, Allowed: t.Names()}
	}
	return Sorting{Field: field, Descending: s.Descending}, nil
}

// Resolve returns the comparator for s with direction and tie-break applied.
func (t SortTable[T]) Resolve(s Sorting) (Comparator[T], error) {
	normalized, err := t.Normalize(s)
	if err != nil {
		return nil, err
	}
	primary := t.Fields[normalized.Field]
	tie := t.TieBreak
	desc := normalized.Descending
	return func(a, b T) int {
		c := primary(a, b)
		if desc {
			c = -c
		}
		if c == 0 && tie != nil {
			c = tie(a, b)
		}
		return c
	}, nil
}

// Names lists the accepted sort fields alphabetically.
func (t SortTable[T]) Names() []string {
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply filters, then sorts, then pages. TotalCount is the post-filter count.
func Apply[T any](items []T, preds []Predicate[T], order Comparator[T], paging Paging) Page[T] {
	paging = paging.Normalized()
	matches := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item, preds) {
			matches = append(matches, item)
		}
	}
	if order != nil {
		slices.SortStableFunc(matches, order)
	}
	total := len(matches)
	start := min(paging.Offset(), total)
	end := min(start+paging.PageSize, total)
	return NewPage(slices.Clone(matches[start:end]), total, paging)
}

func keep[T any](item T, preds []Predicate[T]) bool {
	for _, pred := range preds {
		if pred != nil && !pred(item) {
			return false
		}
	}
	return true
}
