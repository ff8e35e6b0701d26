package entities

import "testing"

func TestParseEventStatus(t *testing.T) {
	status, err := ParseEventStatus("failed")
	if err != nil {
		t.Fatalf("expected lowercase input to parse, got %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", status)
	}

	if _, err := ParseEventStatus("bogus"); err == nil {
		t.Fatal("expected unknown status to fail parsing")
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := []struct {
		from EventStatus
		to   EventStatus
	}{
		{StatusPending, StatusProcessing},
		{StatusFailed, StatusProcessing},
		{StatusProcessing, StatusPublished},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusDeadLetter},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct {
		from EventStatus
		to   EventStatus
	}{
		{StatusPending, StatusPublished},
		{StatusPublished, StatusProcessing},
		{StatusDeadLetter, StatusProcessing},
		{StatusFailed, StatusDeadLetter},
		{StatusPending, StatusDeadLetter},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !StatusPublished.IsTerminal() || !StatusDeadLetter.IsTerminal() {
		t.Fatal("expected PUBLISHED and DEAD_LETTER to be terminal")
	}
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() || StatusFailed.IsTerminal() {
		t.Fatal("expected non-terminal statuses to report non-terminal")
	}
}
