package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")

	ErrCodeNotFound = errors.New("code not found")
	ErrCodeExpired  = errors.New("code expired")
	ErrCodeMismatch = errors.New("code mismatch")

	ErrEmailSendFailure = errors.New("email send failed")
	ErrRateLimited      = errors.New("rate limited")

	ErrDeviceExists        = errors.New("device already registered")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceNotAssociated = errors.New("device not associated to user")
	ErrMeterDataNotFound   = errors.New("meter data not found")
)

// ValidationError lleva el campo y el mensaje mostrado al cliente.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RateLimitedError informa cuánto falta para poder reintentar.
// errors.Is(err, ErrRateLimited) también lo reconoce.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	secs := int(e.RetryAfter.Seconds())
	if secs <= 0 {
		return "too many requests"
	}
	return fmt.Sprintf("retry in %d seconds", secs)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
