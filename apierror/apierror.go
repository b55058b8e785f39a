// Package apierror defines the JSON error envelope returned by the gateway.
//
// Every error response has the shape
//
//	{"code": "INVALID_PARAMETER", "message": "...", "details": {"userId": ["..."]}}
//
// where details is present only for validation failures.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidParameter        Code = "INVALID_PARAMETER"
	CodeInternal                Code = "INTERNAL_ERROR"
	CodeUpstreamInvalidResponse Code = "UPSTREAM_INVALID_RESPONSE"
	CodeRateLimited             Code = "RATE_LIMITED"
	CodeForbidden               Code = "FORBIDDEN"
	CodeNotFound                Code = "NOT_FOUND"
)

// Details maps a field path to its messages.
type Details map[string][]string

// Error is an error that can be rendered as an API response.
type Error struct {
	Code    Code
	Message string
	Details Details
	// Cause is logged but never sent to clients.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error without details.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that records cause.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails returns e with details attached.
func (e *Error) WithDetails(d Details) *Error {
	e.Details = d
	return e
}

// Status returns the HTTP status for code.
func Status(code Code) int {
	switch code {
	case CodeInvalidParameter:
		return http.StatusBadRequest
	case CodeUpstreamInvalidResponse:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// body is the wire form of an Error.
type body struct {
	Code    Code    `json:"code"`
	Message string  `json:"message"`
	Details Details `json:"details,omitempty"`
}

// Write renders err as a JSON error response. Errors that are not an
// *Error become INTERNAL_ERROR without exposing their text.
func Write(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = New(CodeInternal, "Internal server error")
	}
	WriteJSON(w, Status(e.Code), body{Code: e.Code, Message: e.Message, Details: e.Details})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NotFound answers 404 NOT_FOUND naming the unmatched route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Write(w, New(CodeNotFound, fmt.Sprintf("Route %s:%s not found", r.Method, r.URL.Path)))
}
