package errors

import "errors"

var (
	ErrTenantIDRequired  = errors.New("tenant id is required")
	ErrEventIDRequired   = errors.New("event id is required")
	ErrEventTypeRequired = errors.New("event type is required")
	ErrPayloadRequired   = errors.New("event payload is required")
	ErrPayloadTooLarge   = errors.New("event payload exceeds maximum allowed size")
	ErrPayloadNotJSON    = errors.New("event payload must be valid JSON")

	ErrEventNotFound = errors.New("outbox event not found")
	// ErrEventNotClaimed is returned when an outcome update finds the row in a
	// state other than PROCESSING; the claim was lost or already resolved.
	ErrEventNotClaimed = errors.New("outbox event is not in a claimed state")

	ErrTransportRequired  = errors.New("transport is required")
	ErrRepositoryRequired = errors.New("event repository is required")
)
