package store

import "math"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationParams contains parameters for paginated queries
type PaginationParams struct {
	Page     int    // Current page number (1-indexed)
	PageSize int    // Number of items per page
	Search   string // Search keyword
}

// PaginationResult contains pagination metadata
type PaginationResult struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	HasPrev     bool  `json:"has_prev"`
	HasNext     bool  `json:"has_next"`
}

// NewPaginationParams clamps page and pageSize to sane values.
func NewPaginationParams(page, pageSize int, search string) PaginationParams {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Search:   search,
	}
}

// CalculatePagination calculates pagination metadata
func CalculatePagination(total int64, currentPage, pageSize int) PaginationResult {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	if currentPage < 1 {
		currentPage = 1
	}
	if currentPage > totalPages && totalPages > 0 {
		currentPage = totalPages
	}

	return PaginationResult{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
		PageSize:    pageSize,
		HasPrev:     currentPage > 1,
		HasNext:     currentPage < totalPages,
	}
}
