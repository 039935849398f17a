package models

import (
	"errors"
	"fmt"
	"time"
)

// ==============================================
// PREDEFINED ERRORS
// ==============================================

// Input Errors (rejected before touching storage)
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidPurpose = errors.New("invalid purpose")
)

// OTP Errors
var (
	ErrRateLimitedShort = errors.New("too many codes requested")
	ErrRateLimitedDaily = errors.New("daily code limit reached")
	ErrTransportFailure = errors.New("message delivery failed")
	ErrOTPNotFound      = errors.New("OTP not found")
)

// Credential Errors
var (
	ErrInvalidCredential     = errors.New("invalid or expired code")
	ErrPrincipalNotFound     = errors.New("principal not found")
	ErrUnsupportedCredential = errors.New("no strategy supports credential")
)

// Token Errors
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ==============================================
// RATE LIMIT ERROR
// ==============================================

// RateLimitKind distinguishes the burst throttle from the daily one.
type RateLimitKind int

const (
	RateLimitShort RateLimitKind = iota
	RateLimitDaily
)

func (k RateLimitKind) String() string {
	if k == RateLimitDaily {
		return "daily"
	}
	return "short"
}

// RateLimitError is returned by issuance when a throttle trips.
// errors.Is matches ErrRateLimitedShort or ErrRateLimitedDaily.
type RateLimitError struct {
	Kind       RateLimitKind
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Kind == RateLimitDaily {
		return ErrRateLimitedDaily.Error()
	}
	return fmt.Sprintf("%s, try again in %d minutes", ErrRateLimitedShort, e.RetryMinutes())
}

func (e *RateLimitError) Is(target error) bool {
	switch target {
	case ErrRateLimitedShort:
		return e.Kind == RateLimitShort
	case ErrRateLimitedDaily:
		return e.Kind == RateLimitDaily
	}
	return false
}

// RetryMinutes rounds the remaining cooldown up to whole minutes, minimum 1.
func (e *RateLimitError) RetryMinutes() int {
	m := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

// ==============================================
// ERROR CODES (for API responses)
// ==============================================
const (
	// Input error codes
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidAddress = "invalid_address"
	ErrCodeInvalidPurpose = "invalid_purpose"

	// OTP error codes
	ErrCodeRateLimitedShort = "rate_limited_short"
	ErrCodeRateLimitedDaily = "rate_limited_daily"
	ErrCodeTransportFailure = "transport_failure"

	// Auth error codes
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeUnauthorized       = "unauthorized"

	// Generic error codes
	ErrCodeInternalError = "internal_error"
)

// ==============================================
// HELPER FUNCTIONS
// ==============================================

// IsRateLimitError checks if error is either throttle
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimitedShort) || errors.Is(err, ErrRateLimitedDaily)
}

// IsAuthError checks if error should surface as an unauthenticated response
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrPrincipalNotFound) ||
		errors.Is(err, ErrUnsupportedCredential) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired)
}

// IsValidationError checks if error is validation-related
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidPurpose)
}
