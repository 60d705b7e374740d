// Package domain provides shared domain types.
package domain

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// DefaultLimit is the page size used when a filter does not specify one.
const DefaultLimit = 50
