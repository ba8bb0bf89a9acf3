package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"finanzas/internal/core"
)

func writeAndDecode(t *testing.T, b *JSONResponseBuilder) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	b.Write(w)
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, w.Body.String())
	}
	return w, body
}

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w, body := writeAndDecode(t, NewJSONResponse().
		Message("ok").
		Field("count", 3).
		SuccessNotification("3 creados").
		Header("X-Extra", "1"))

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Extra") != "1" {
		t.Error("custom header not set")
	}
	if body["success"] != true || body["message"] != "ok" || body["count"] != float64(3) {
		t.Errorf("body = %v", body)
	}
	n, ok := body["notification"].(map[string]any)
	if !ok || n["type"] != "success" || n["message"] != "3 creados" {
		t.Errorf("notification = %v", body["notification"])
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("create: %w", core.ErrEmptyDescription), http.StatusBadRequest},
		{"not found", fmt.Errorf("get x: %w", core.ErrNotFound), http.StatusNotFound},
		{"anything else", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := writeAndDecode(t, ErrorFor(tt.err, "falló"))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if body["success"] != false || body["message"] != "falló" || body["error"] != tt.err.Error() {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		want    int
	}{
		{"unauthorized", UnauthorizedError(), http.StatusUnauthorized},
		{"forbidden", ForbiddenError("solo desarrollo"), http.StatusForbidden},
		{"method", MethodNotAllowedError("GET, POST"), http.StatusMethodNotAllowed},
		{"bad request", BadRequestError("x", nil), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := writeAndDecode(t, tt.builder)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
			if _, ok := body["error"]; ok {
				t.Errorf("nil error should not be exposed: %v", body)
			}
		})
	}

	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}
