package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"herald/contexts/eventing/outbox-engine/domain/entities"
	"herald/internal/shared/events"
)

func sampleEvent() entities.OutboxEvent {
	return entities.OutboxEvent{
		ID:        "row-1",
		TenantID:  "tenant-1",
		EventID:   "evt-1",
		EventType: "order.created",
		Payload:   []byte(`{"order_id":"o-1"}`),
		CreatedAt: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishDeliversEnvelope(t *testing.T) {
	var received events.Envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewPublisher(server.URL, nil)
	if err := publisher.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if received.EventID != "evt-1" || received.EventType != "order.created" {
		t.Fatalf("unexpected envelope: %+v", received)
	}
	if received.TenantID != "tenant-1" {
		t.Fatalf("expected tenant carried in envelope, got %q", received.TenantID)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewPublisher(server.URL, nil)
	if err := publisher.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}
}

func TestPublishReportsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher := NewPublisher(server.URL, nil)
	if err := publisher.Publish(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected persistent 500s to surface as an error")
	}
}
