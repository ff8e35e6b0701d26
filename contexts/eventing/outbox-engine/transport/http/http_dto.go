package http

import "encoding/json"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type EnqueueEventRequest struct {
	TenantID       string          `json:"tenant_id"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	CorrelationID  string          `json:"correlation_id"`
	SourceService  string          `json:"source_service"`
	Payload        json.RawMessage `json:"payload"`
}

type EnqueueEventResponse struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

type OutboxEventDTO struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	CorrelationID string          `json:"correlation_id"`
	SourceService string          `json:"source_service"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt string          `json:"next_attempt_at"`
	LastError     string          `json:"last_error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     string          `json:"created_at"`
	PublishedAt   string          `json:"published_at,omitempty"`
}

type ListEventsResponse struct {
	Items []OutboxEventDTO `json:"items"`
}

type StatsResponse struct {
	Pending         int64 `json:"pending"`
	Processing      int64 `json:"processing"`
	Published       int64 `json:"published"`
	Failed          int64 `json:"failed"`
	DeadLetter      int64 `json:"dead_letter"`
	StuckProcessing int64 `json:"stuck_processing"`
}

type CleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}
