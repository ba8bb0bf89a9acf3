// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finanzas/internal/core"
)

const maxBodyBytes = 1 << 20

// Actor headers set by the dashboard's auth proxy.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// ParseMonthParams reads ?year&month, defaulting each missing value to the
// month of now. Malformed or out-of-range values are validation errors.
func ParseMonthParams(query url.Values, now time.Time) (core.Period, error) {
	p := core.PeriodOf(now)

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: year %q", core.ErrInvalidYear, v)
		}
		p.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: month %q", core.ErrInvalidMonth, v)
		}
		p.Month = time.Month(m)
	}

	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}

// ParseDateRange reads ?from&to as YYYY-MM-DD. The defaults cover the
// previous and the current month of now.
func ParseDateRange(query url.Values, now time.Time) (from, to time.Time, err error) {
	current := core.PeriodOf(now)
	from = current.Previous().FirstDay().Time
	to = current.LastDay().Time

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d.Time
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d.Time
	}
	return from, to, nil
}

// ParseActiveFilter reads ?active=true|false. Absent means no filter.
func ParseActiveFilter(query url.Values) (*bool, error) {
	v := strings.TrimSpace(query.Get("active"))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: active %q", core.ErrValidation, v)
	}
	return &b, nil
}

// decodeJSON reads a size-limited JSON body into dst. Malformed bodies are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", core.ErrValidation)
		}
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return nil
}

// actorFromRequest identifies the caller. Requests without identity headers
// act as the anonymous user.
func actorFromRequest(r *http.Request) core.Actor {
	id := sanitizeInput(r.Header.Get(HeaderUserID))
	if id == "" {
		id = "anonymous"
	}
	return core.UserActor(id, sanitizeInput(r.Header.Get(HeaderUserEmail)))
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
