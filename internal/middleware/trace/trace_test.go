package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finanzas/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Component: log.ComponentHTTP})
	mw := NewMiddleware(func(*http.Request) string { return "10.0.0.9" }, logger)

	var seen string
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentTrace {
			t.Error("request logger not installed in context")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"caller id is reused", "cron-2025-11-01", true},
		{"missing id is generated", "", false},
		{"malformed id is replaced", "bad id with spaces", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/carryover/info", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("request id = %q, want %q", got, tt.incoming)
			}
			if !tt.keep && !strings.HasPrefix(got, "req_") {
				t.Errorf("request id = %q, want generated", got)
			}
		})
	}

	if m := mw.GetMetrics(); m.TotalRequests != 3 || m.ServerErrors != 3 {
		t.Errorf("GetMetrics() = %+v", m)
	}
	if !strings.Contains(buf.String(), "HTTP request completed") || !strings.Contains(buf.String(), "status_code=500") {
		t.Errorf("completion line missing from log output:\n%s", buf.String())
	}
}
