package dto

import "rentacar/internal/domain/shared/search"

type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

func MapPage[T, U any](p search.Page[T], fn func(T) U) Page[U] {
	mapped := search.MapPage(p, fn)
	return Page[U]{
		Items:      mapped.Items,
		TotalCount: mapped.TotalCount,
		PageNumber: mapped.PageNumber,
		PageSize:   mapped.PageSize,
		TotalPages: mapped.TotalPages,
	}
}
