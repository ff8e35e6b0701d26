package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"herald/contexts/eventing/outbox-engine/application"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	"herald/internal/shared/events"
)

const (
	defaultRequestTimeout  = 5 * time.Second
	defaultMaxRequestTries = 3
)

// Publisher delivers outbox events to a consumer endpoint as JSON envelopes.
// Transient request failures are retried with exponential backoff inside a
// single Publish call; the dispatcher's own retry schedule handles the rest.
type Publisher struct {
	endpoint string
	client   *http.Client
	tries    int
	logger   *slog.Logger
}

func NewPublisher(endpoint string, logger *slog.Logger) *Publisher {
	return &Publisher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultRequestTimeout},
		tries:    defaultMaxRequestTries,
		logger:   application.ResolveLogger(logger),
	}
}

func (p *Publisher) Publish(ctx context.Context, event entities.OutboxEvent) error {
	envelope := events.Envelope{
		EventID:       event.EventID,
		EventType:     event.EventType,
		TenantID:      event.TenantID,
		CorrelationID: event.CorrelationID,
		SourceService: event.SourceService,
		OccurredAtUTC: event.CreatedAt,
		Payload:       event.Payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= p.tries; attempt++ {
		lastErr = p.send(ctx, body)
		if lastErr == nil {
			return nil
		}
		if attempt == p.tries {
			break
		}
		p.logger.Debug("webhook delivery retry",
			slog.String("event", "webhook_retry"),
			slog.String("event_id", event.EventID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.NextBackOff()):
		}
	}
	return lastErr
}

func (p *Publisher) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
