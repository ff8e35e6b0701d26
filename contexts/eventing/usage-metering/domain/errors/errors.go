package errors

import "errors"

var (
	ErrTenantIDRequired   = errors.New("tenant id is required")
	ErrMeterRequired      = errors.New("meter name is required")
	ErrQuantityInvalid    = errors.New("quantity must be positive")
	ErrRecordedAtInvalid  = errors.New("recorded_at must be RFC 3339")
	ErrRepositoryRequired = errors.New("usage repository is not configured")
)
