// Package utils holds small helpers shared by the HTTP layer.
package utils

import "strconv"

// Pagination defaults for list endpoints.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s, returning def when s is empty or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage parses raw page and page_size values and bounds them to
// [1, ∞) and [1, MaxPageSize].
func ClampPage(rawPage, rawSize string) (page, size int) {
	page = AtoiDefault(rawPage, DefaultPage)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(rawSize, DefaultPageSize)
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// PageBounds returns the [start, end) slice bounds of page within total items
// and the number of pages. A page past the end yields start == end == total.
func PageBounds(total, page, size int) (start, end, pages int) {
	if size < 1 {
		size = 1
	}
	if page < 1 {
		page = 1
	}
	pages = (total + size - 1) / size
	start = (page - 1) * size
	if start > total {
		start = total
	}
	end = start + size
	if end > total {
		end = total
	}
	return start, end, pages
}
