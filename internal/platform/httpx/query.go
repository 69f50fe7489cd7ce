package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// QueryInt reads an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// QueryInt64 reads an int64 query parameter, zero when absent or malformed.
func QueryInt64(r *http.Request, name string) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// QueryDate reads a YYYY-MM-DD query parameter. The zero time means absent
// or malformed.
func QueryDate(r *http.Request, name string) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// URLParamInt64 parses a chi URL parameter as int64.
func URLParamInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// Page converts page/per_page query parameters into limit and offset.
func Page(r *http.Request, defaultPerPage int) (page, perPage, limit, offset int) {
	page = QueryInt(r, "page", 1)
	if page <= 0 {
		page = 1
	}
	perPage = QueryInt(r, "per_page", defaultPerPage)
	if perPage <= 0 || perPage > 200 {
		perPage = defaultPerPage
	}
	return page, perPage, perPage, (page - 1) * perPage
}
