// Package apierr defines the API error vocabulary shared by all handlers.
//
// Every failure a client can act on gets a stable machine-readable code.
// Handlers build an *Error (or wrap a store error into one) and hand it to
// Write, which picks the HTTP status from the code.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/projectgoat/projectgoat/internal/app/system/jsonutil"
)

// Code identifies a failure class. Codes are part of the wire contract and
// must not change once clients depend on them.
type Code string

const (
	CodeRateLimited            Code = "rate_limited"
	CodeAccountLocked          Code = "account_locked"
	CodeAccountDisabled        Code = "account_disabled"
	CodeInvalidCredentials     Code = "invalid_credentials"
	CodeSessionExpiredIdle     Code = "session_expired_idle"
	CodeSessionExpiredAbsolute Code = "session_expired_absolute"
	CodeSessionInvalid         Code = "session_invalid"
	CodeCSRFMismatch           Code = "csrf_mismatch"
	CodeNotTeamMember          Code = "not_team_member"
	CodeInsufficientRole       Code = "insufficient_role"
	CodeInvitationExpired      Code = "invitation_expired"
	CodeInvitationConsumed     Code = "invitation_consumed"
	CodeInvitationNotFound     Code = "invitation_not_found"
	CodeWouldRemoveLastAdmin   Code = "would_remove_last_admin"
	CodeWeakPassword           Code = "weak_password"
	CodePasswordReused         Code = "password_reused"
	CodeValidation             Code = "validation_failed"
	CodeNotFound               Code = "not_found"
	CodeConflict               Code = "conflict"
	CodeInternal               Code = "internal_error"
)

// httpStatus maps each code to its HTTP status.
var httpStatus = map[Code]int{
	CodeRateLimited:            http.StatusTooManyRequests,
	CodeAccountLocked:          http.StatusForbidden,
	CodeAccountDisabled:        http.StatusForbidden,
	CodeInvalidCredentials:     http.StatusUnauthorized,
	CodeSessionExpiredIdle:     http.StatusUnauthorized,
	CodeSessionExpiredAbsolute: http.StatusUnauthorized,
	CodeSessionInvalid:         http.StatusUnauthorized,
	CodeCSRFMismatch:           http.StatusForbidden,
	CodeNotTeamMember:          http.StatusForbidden,
	CodeInsufficientRole:       http.StatusForbidden,
	CodeInvitationExpired:      http.StatusGone,
	CodeInvitationConsumed:     http.StatusGone,
	CodeInvitationNotFound:     http.StatusNotFound,
	CodeWouldRemoveLastAdmin:   http.StatusConflict,
	CodeWeakPassword:           http.StatusBadRequest,
	CodePasswordReused:         http.StatusBadRequest,
	CodeValidation:             http.StatusBadRequest,
	CodeNotFound:               http.StatusNotFound,
	CodeConflict:               http.StatusConflict,
	CodeInternal:               http.StatusInternalServerError,
}

// Error is an API-visible failure.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]any // optional extra payload (e.g. retry_after_seconds)
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *Error for the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithField attaches an extra key to the response payload and returns e.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus returns the status for a code, 500 for unknown codes.
func HTTPStatus(code Code) int {
	if s, ok := httpStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// From converts any error into an *Error. Non-apierr errors become an
// internal error with a generic message so internals never leak to clients.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Code: CodeInternal, Message: "internal server error"}
}

// Write serializes err as {"error": message, "code": code, ...fields} with
// the status derived from the code.
func Write(w http.ResponseWriter, err error) {
	ae := From(err)
	body := map[string]any{
		"error": ae.Message,
		"code":  ae.Code,
	}
	for k, v := range ae.Fields {
		body[k] = v
	}
	jsonutil.JSON(w, HTTPStatus(ae.Code), body)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
