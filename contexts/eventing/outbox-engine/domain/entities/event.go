package entities

import (
	"encoding/json"
	"strings"
	"time"

	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
)

// MaxPayloadBytes bounds stored payloads; the engine never inspects payload
// content beyond checking it is valid JSON.
const MaxPayloadBytes = 1 << 20

// OutboxEvent is the unit of durable delivery. A row exists only if the
// producing business transaction committed, and leaves the table only via
// retention cleanup of published rows.
type OutboxEvent struct {
	ID             string
	TenantID       string
	EventID        string
	EventType      string
	IdempotencyKey string
	Payload        json.RawMessage
	CorrelationID  string
	SourceService  string
	Status         EventStatus
	Attempts       int
	NextAttemptAt  time.Time
	LastError      string
	CreatedAt      time.Time
	PublishedAt    *time.Time
}

// Validate checks the fields the store requires before an insert is attempted.
func (e OutboxEvent) Validate() error {
	if strings.TrimSpace(e.TenantID) == "" {
		return domainerrors.ErrTenantIDRequired
	}
	if strings.TrimSpace(e.EventID) == "" {
		return domainerrors.ErrEventIDRequired
	}
	if strings.TrimSpace(e.EventType) == "" {
		return domainerrors.ErrEventTypeRequired
	}
	if len(e.Payload) == 0 {
		return domainerrors.ErrPayloadRequired
	}
	if len(e.Payload) > MaxPayloadBytes {
		return domainerrors.ErrPayloadTooLarge
	}
	if !json.Valid(e.Payload) {
		return domainerrors.ErrPayloadNotJSON
	}
	return nil
}

// DeliveryPolicy carries the retry knobs shared by the claimer and the
// dispatcher. Zero values fall back to the reference policy.
type DeliveryPolicy struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	ClaimBackoff time.Duration
}

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 30 * time.Second
	DefaultClaimBackoff = 30 * time.Second
)

// Normalized returns the policy with reference defaults filled in.
func (p DeliveryPolicy) Normalized() DeliveryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = DefaultRetryBackoff
	}
	if p.ClaimBackoff <= 0 {
		p.ClaimBackoff = DefaultClaimBackoff
	}
	return p
}
