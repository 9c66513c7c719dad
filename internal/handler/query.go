package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/forum/internal/apperror"
	"github.com/sakif/forum/internal/filter"
)

// Listing defaults: ?limit=10&offset=0.
const defaultLimit = 10

// dateLayouts are the accepted forms of start_date and end_date.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// pathID reads a positive integer URL parameter such as {id}.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}

// parseWindow reads limit and offset. Missing values take the defaults;
// limit < 1 and offset < 0 are rejected.
func parseWindow(q url.Values) (filter.Window, error) {
	w := filter.Window{Limit: defaultLimit}
	var err error
	if raw := q.Get("limit"); raw != "" {
		if w.Limit, err = strconv.Atoi(raw); err != nil {
			return w, apperror.ValidationFailed("limit", "limit must be an integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if w.Offset, err = strconv.Atoi(raw); err != nil {
			return w, apperror.ValidationFailed("offset", "offset must be an integer")
		}
	}
	return w, filter.ValidatePage(w)
}

// parseSort reads sort_by and sort. The key is passed through untouched;
// the repository allow-list decides whether it is used.
func parseSort(q url.Values) (filter.Sort, error) {
	dir, err := filter.ParseDirection(q.Get("sort"))
	if err != nil {
		return filter.Sort{}, err
	}
	return filter.Sort{Key: strings.TrimSpace(q.Get("sort_by")), Dir: dir}, nil
}

// parseListing combines parseSort and parseWindow.
func parseListing(q url.Values) (filter.Sort, filter.Window, error) {
	s, err := parseSort(q)
	if err != nil {
		return s, filter.Window{}, err
	}
	w, err := parseWindow(q)
	return s, w, err
}

// queryInt64 reads an optional integer parameter; absent means 0.
func queryInt64(q url.Values, name string) (int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}

// queryBool reads an optional boolean parameter; absent is nil.
func queryBool(q url.Values, name string) (*bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.ValidationFailed(name, name+" must be true or false")
	}
	return &b, nil
}

// queryTime reads an optional date parameter in one of dateLayouts.
// Values without a zone are taken as UTC.
func queryTime(q url.Values, name string) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.ValidationFailed(name, name+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}
