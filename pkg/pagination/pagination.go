// Package pagination extracts the page-based search parameters shared by
// every list endpoint: _count (page size) and _page (1-based page number).
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// FromContext extracts pagination parameters from the echo context.
// Out-of-range values are clamped, never rejected.
func FromContext(c echo.Context) Params {
	size, _ := strconv.Atoi(c.QueryParam("_count"))
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	page, _ := strconv.Atoi(c.QueryParam("_page"))
	if page < 1 {
		page = 1
	}

	return Params{Page: page, PageSize: size}
}

// Offset returns the zero-based item offset of the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}
