package events

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical wire shape handed to transports.
// Align fields with the outbox row so consumers can correlate deliveries.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	TenantID      string          `json:"tenant_id"`
	CorrelationID string          `json:"correlation_id"`
	SourceService string          `json:"source_service"`
	OccurredAtUTC time.Time       `json:"occurred_at_utc"`
	Payload       json.RawMessage `json:"payload"`
}
