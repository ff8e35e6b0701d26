package commands

import (
	"context"
	"errors"
	"testing"

	"herald/contexts/eventing/outbox-engine/adapters/memory"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
)

func newStoreUseCase(store *memory.Store) StoreEventUseCase {
	return StoreEventUseCase{
		Store:       store,
		Clock:       store,
		IDGenerator: store,
	}
}

func validCommand() StoreEventCommand {
	return StoreEventCommand{
		TenantID:      "tenant-1",
		EventID:       "evt-1",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":"o-1"}`),
		CorrelationID: "corr-1",
		SourceService: "orders",
	}
}

func TestStoreEventPersistsPendingRow(t *testing.T) {
	store := memory.NewStore(entities.DeliveryPolicy{})
	uc := newStoreUseCase(store)

	result, err := uc.Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("expected store to succeed, got %v", err)
	}
	if result.Duplicate {
		t.Fatal("first submission must not report duplicate")
	}

	event, ok := store.Get(result.ID)
	if !ok {
		t.Fatalf("expected stored event %s", result.ID)
	}
	if event.Status != entities.StatusPending {
		t.Fatalf("expected PENDING, got %s", event.Status)
	}
	if event.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", event.Attempts)
	}
}

func TestStoreEventAbsorbsIdempotencyKeyDuplicate(t *testing.T) {
	store := memory.NewStore(entities.DeliveryPolicy{})
	uc := newStoreUseCase(store)

	first := validCommand()
	first.IdempotencyKey = "op-42"
	if _, err := uc.Execute(context.Background(), first); err != nil {
		t.Fatalf("first store failed: %v", err)
	}

	second := validCommand()
	second.EventID = "evt-2"
	second.IdempotencyKey = "op-42"
	result, err := uc.Execute(context.Background(), second)
	if err != nil {
		t.Fatalf("duplicate submission must not error, got %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected duplicate outcome for reused idempotency key")
	}
	if store.Count() != 1 {
		t.Fatalf("expected one stored row, got %d", store.Count())
	}
}

func TestStoreEventAbsorbsBusinessKeyDuplicate(t *testing.T) {
	store := memory.NewStore(entities.DeliveryPolicy{})
	uc := newStoreUseCase(store)

	if _, err := uc.Execute(context.Background(), validCommand()); err != nil {
		t.Fatalf("first store failed: %v", err)
	}

	result, err := uc.Execute(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("duplicate submission must not error, got %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected duplicate outcome for repeated (event_id, event_type)")
	}

	// Same event id under a different type is a distinct business event.
	distinct := validCommand()
	distinct.EventType = "order.updated"
	result, err = uc.Execute(context.Background(), distinct)
	if err != nil {
		t.Fatalf("distinct event type failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("expected distinct event type to store a new row")
	}
}

func TestStoreEventValidation(t *testing.T) {
	store := memory.NewStore(entities.DeliveryPolicy{})
	uc := newStoreUseCase(store)

	cases := []struct {
		name    string
		mutate  func(*StoreEventCommand)
		wantErr error
	}{
		{"missing tenant", func(c *StoreEventCommand) { c.TenantID = " " }, domainerrors.ErrTenantIDRequired},
		{"missing event id", func(c *StoreEventCommand) { c.EventID = "" }, domainerrors.ErrEventIDRequired},
		{"missing event type", func(c *StoreEventCommand) { c.EventType = "" }, domainerrors.ErrEventTypeRequired},
		{"missing payload", func(c *StoreEventCommand) { c.Payload = nil }, domainerrors.ErrPayloadRequired},
		{"invalid payload", func(c *StoreEventCommand) { c.Payload = []byte("{") }, domainerrors.ErrPayloadNotJSON},
	}
	for _, tc := range cases {
		cmd := validCommand()
		tc.mutate(&cmd)
		if _, err := uc.Execute(context.Background(), cmd); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
	if store.Count() != 0 {
		t.Fatalf("expected no rows stored, got %d", store.Count())
	}
}

func TestStoreEventRejectsOversizedPayload(t *testing.T) {
	store := memory.NewStore(entities.DeliveryPolicy{})
	uc := newStoreUseCase(store)

	big := make([]byte, entities.MaxPayloadBytes+2)
	big[0] = '"'
	for i := 1; i < len(big)-1; i++ {
		big[i] = 'x'
	}
	big[len(big)-1] = '"'

	cmd := validCommand()
	cmd.Payload = big
	if _, err := uc.Execute(context.Background(), cmd); !errors.Is(err, domainerrors.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
