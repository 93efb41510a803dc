package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps page sizes so a single listing can never scan unbounded
// rows, whatever the query string asks for.
const MaxPerPage = 100

// Pagination is the metadata block list responses return alongside data.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination reads page and limit query parameters, falling back to page
// one and defaultPerPage, and clamping the page size to MaxPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return
}
