package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"accounts-api/internal/apierror"
	"accounts-api/internal/user"
)

// timestampLayouts are the accepted forms of a date filter value. Values
// without a zone are taken as UTC.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected RFC 3339 or 2006-01-02T15:04:05")
}

func int64Param(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apierror.BadRequest(fmt.Sprintf("invalid %s: must be an integer", name))
	}
	return &n, nil
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return nil, apierror.BadRequest(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return &t, nil
}

// parseUserParams reads list options from the query string. Unknown keys are ignored.
func parseUserParams(q url.Values) (user.Params, error) {
	var p user.Params
	var err error

	if p.Page, err = int64Param(q, "page"); err != nil {
		return user.Params{}, err
	}
	if p.PageSize, err = int64Param(q, "page_size"); err != nil {
		return user.Params{}, err
	}
	p.SortBy = strings.TrimSpace(q.Get("sort_by"))
	if q.Has("email") {
		email := q.Get("email")
		p.Email = &email
	}

	for _, tf := range []struct {
		name string
		dst  **time.Time
	}{
		{"created_at[gte]", &p.CreatedAtGTE},
		{"created_at[lte]", &p.CreatedAtLTE},
		{"updated_at[gte]", &p.UpdatedAtGTE},
		{"updated_at[lte]", &p.UpdatedAtLTE},
	} {
		if *tf.dst, err = timeParam(q, tf.name); err != nil {
			return user.Params{}, err
		}
	}
	return p, nil
}
