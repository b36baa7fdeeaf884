package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Authentication outcomes. ErrAuthFailed and ErrRefreshDenied are the only
// kinds that cross the HTTP boundary; the rest are reasons kept for logs.
var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRefreshDenied = errors.New("cannot refresh")

	ErrDuplicateSubject    = errors.New("subject already registered")
	ErrRegistrationClosed  = errors.New("registration is disabled")
	ErrUnknownSubject      = errors.New("unknown subject")
	ErrWrongPassword       = errors.New("wrong password")
	ErrAuthBlocked         = errors.New("too many failed attempts")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrRenewalTokenMissing = errors.New("renewal token missing")
	ErrRenewalTokenExpired = errors.New("renewal token expired")
)

// AuthError pairs an opaque Kind with the internal Reason. Error() only ever
// renders the Kind, so the reason cannot leak into a response body.
type AuthError struct {
	Kind   error
	Reason error
}

// NewAuthFailure wraps a login failure reason.
func NewAuthFailure(reason error) *AuthError {
	return &AuthError{Kind: ErrAuthFailed, Reason: reason}
}

// NewRefreshDenial wraps a refresh failure reason.
func NewRefreshDenial(reason error) *AuthError {
	return &AuthError{Kind: ErrRefreshDenied, Reason: reason}
}

func (e *AuthError) Error() string {
	return e.Kind.Error()
}

func (e *AuthError) Unwrap() []error {
	return []error{e.Kind, e.Reason}
}
