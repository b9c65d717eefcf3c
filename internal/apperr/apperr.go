// Package apperr defines the typed error vocabulary shared by the gateway
// core and the HTTP boundary. Every failure a caller can observe carries one
// of these codes, and the boundary derives the HTTP status from the code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes produced by the gateway.
const (
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeInvalidSession       = "INVALID_SESSION"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUpstreamUnavailable  = "VCF_UNAVAILABLE"
	CodeUpstreamLoginFailed  = "VCF_LOGIN_FAILED"
	CodeUpstreamTokenMissing = "VCF_TOKEN_MISSING"
	CodeUpstreamTokenExpired = "VCF_TOKEN_EXPIRED"
	CodeUpstreamFetchFailed  = "VCF_FETCH_FAILED"
	CodeUpstreamBadResponse  = "VCF_BAD_RESPONSE"
	CodeRateLimited          = "RATE_LIMITED"
	CodeOriginNotAllowed     = "ORIGIN_NOT_ALLOWED"
	CodeThrottleUnavailable  = "THROTTLE_UNAVAILABLE"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is a typed gateway failure. Details carries optional diagnostic
// context and is serialized verbatim in the error response body.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error without details.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails attaches diagnostic context to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Status maps an error code onto the HTTP status the boundary responds with.
// Session and credential failures are 401, upstream communication failures
// are 502, malformed input is 400, and everything else is 500.
func Status(code string) int {
	switch code {
	case CodeAuthRequired, CodeInvalidSession, CodeInvalidCredentials, CodeUpstreamTokenExpired:
		return http.StatusUnauthorized
	case CodeUpstreamUnavailable, CodeUpstreamLoginFailed, CodeUpstreamTokenMissing,
		CodeUpstreamFetchFailed, CodeUpstreamBadResponse:
		return http.StatusBadGateway
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeOriginNotAllowed:
		return http.StatusForbidden
	case CodeThrottleUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From extracts the typed Error from err. Unclassified errors are wrapped as
// INTERNAL_ERROR, exposing only the error-kind tag rather than internals.
func From(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{
		Code:    CodeInternal,
		Message: "an unexpected error occurred",
		Details: map[string]any{"type": fmt.Sprintf("%T", err)},
	}
}
