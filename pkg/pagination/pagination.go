// Package pagination provides pagination and sorting utilities.
package pagination

import "strings"

// Request holds pagination parameters from a list request.
type Request struct {
	Page    int
	PerPage int
}

// New creates a Request with defaults and limits applied.
func New(page, perPage int) Request {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return Request{
		Page:    page,
		PerPage: perPage,
	}
}

// Offset returns the offset for database queries.
func (r Request) Offset() int {
	return (r.Page - 1) * r.PerPage
}

// Limit returns the limit for database queries.
func (r Request) Limit() int {
	return r.PerPage
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Sort represents a single sorting specification.
type Sort struct {
	Field string
	Order SortOrder
}

// SortOption parses and validates sort strings against an allow-list.
type SortOption struct {
	sorts         []Sort
	allowedFields map[string]string // request field -> DB column
}

// NewSortOption creates a SortOption with allowed fields, mapping
// user-facing names to database columns.
func NewSortOption(allowedFields map[string]string) *SortOption {
	return &SortOption{
		sorts:         make([]Sort, 0),
		allowedFields: allowedFields,
	}
}

// Parse parses a sort string like "-created_at,name". A "-" prefix
// means descending. Unknown fields are silently dropped.
func (s *SortOption) Parse(sortStr string) *SortOption {
	if sortStr == "" {
		return s
	}

	for _, part := range strings.Split(sortStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		order := SortAsc
		field := part

		if strings.HasPrefix(part, "-") {
			order = SortDesc
			field = part[1:]
		} else if strings.HasPrefix(part, "+") {
			field = part[1:]
		}

		if dbColumn, ok := s.allowedFields[field]; ok {
			s.sorts = append(s.sorts, Sort{Field: dbColumn, Order: order})
		}
	}

	return s
}

// Sorts returns the parsed sort specifications.
func (s *SortOption) Sorts() []Sort {
	return s.sorts
}

// SQL returns the ORDER BY clause body, or "" when no sorts parsed.
func (s *SortOption) SQL() string {
	if len(s.sorts) == 0 {
		return ""
	}

	parts := make([]string, 0, len(s.sorts))
	for _, sort := range s.sorts {
		parts = append(parts, sort.Field+" "+string(sort.Order))
	}
	return strings.Join(parts, ", ")
}

// SQLWithDefault returns the ORDER BY clause body, using defaultSort
// when no sorts were parsed.
func (s *SortOption) SQLWithDefault(defaultSort string) string {
	if sql := s.SQL(); sql != "" {
		return sql
	}
	return defaultSort
}

// Result is a paginated result set.
type Result[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewResult creates a Result from a data page and total count.
func NewResult[T any](data []T, total int64, r Request) Result[T] {
	if data == nil {
		data = make([]T, 0)
	}

	totalPages := int(total) / r.PerPage
	if int(total)%r.PerPage > 0 {
		totalPages++
	}

	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       r.Page,
		PerPage:    r.PerPage,
		TotalPages: totalPages,
	}
}
