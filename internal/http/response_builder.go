// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses.
// Every body carries "success" and, for interactive endpoints, a toast-style
// "notification" the dashboard displays as is.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finanzas/internal/core"
)

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

type notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	fields     map[string]any
	headers    map[string]string
}

// NewJSONResponse creates a successful 200 response builder.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		fields:     map[string]any{"success": true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Success overrides the success flag.
func (b *JSONResponseBuilder) Success(ok bool) *JSONResponseBuilder {
	b.fields["success"] = ok
	return b
}

// Message sets the human readable message.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.fields["message"] = msg
	return b
}

// Field adds a top-level body field.
func (b *JSONResponseBuilder) Field(name string, value any) *JSONResponseBuilder {
	b.fields[name] = value
	return b
}

// Notification attaches the toast shown by the dashboard.
func (b *JSONResponseBuilder) Notification(t NotificationType, message string) *JSONResponseBuilder {
	b.fields["notification"] = notification{Type: t, Message: message}
	return b
}

// SuccessNotification is a convenience method for success notifications.
func (b *JSONResponseBuilder) SuccessNotification(message string) *JSONResponseBuilder {
	return b.Notification(NotificationSuccess, message)
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.fields)
}

// ErrorResponse creates a failed response. err, when present, is exposed
// in the "error" field.
func ErrorResponse(statusCode int, message string, err error) *JSONResponseBuilder {
	b := NewJSONResponse().
		Status(statusCode).
		Success(false).
		Message(message)
	if err != nil {
		b.Field("error", err.Error())
	}
	return b
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string, err error) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, err)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string, err error) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message, err)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string, err error) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message, err)
}

// UnauthorizedError creates a 401 response.
func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "Unauthorized", nil)
}

// ForbiddenError creates a 403 response.
func ForbiddenError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusForbidden, message, nil)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed. Use "+allowedMethods+".", nil).
		Header("Allow", allowedMethods)
}

// ErrorFor maps a service error onto a status: validation 400, not found
// 404, anything else 500.
func ErrorFor(err error, message string) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrValidation):
		return BadRequestError(message, err)
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(message, err)
	default:
		return InternalServerError(message, err)
	}
}
