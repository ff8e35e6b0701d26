package entities

import "fmt"

// EventStatus is a valid outbox event lifecycle state.
type EventStatus string

const (
	StatusPending    EventStatus = "PENDING"
	StatusProcessing EventStatus = "PROCESSING"
	StatusPublished  EventStatus = "PUBLISHED"
	StatusFailed     EventStatus = "FAILED"
	StatusDeadLetter EventStatus = "DEAD_LETTER"
)

// ParseEventStatus validates and converts a raw string status.
func ParseEventStatus(raw string) (EventStatus, error) {
	status := EventStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid outbox status: %q", raw)
	}
	return status, nil
}

// IsValid reports whether the status is part of the outbox lifecycle.
func (status EventStatus) IsValid() bool {
	switch status {
	case StatusPending, StatusProcessing, StatusPublished, StatusFailed, StatusDeadLetter:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions.
// DEAD_LETTER rows require operator action; PUBLISHED rows only await retention.
func (status EventStatus) IsTerminal() bool {
	return status == StatusPublished || status == StatusDeadLetter
}

// CanTransitionTo reports whether a transition from status to next is allowed.
// Claims move PENDING/FAILED to PROCESSING; the dispatcher records exactly one
// outcome per claim: PUBLISHED, FAILED, or DEAD_LETTER.
func (status EventStatus) CanTransitionTo(next EventStatus) bool {
	if status.IsTerminal() || !next.IsValid() {
		return false
	}
	switch status {
	case StatusPending, StatusFailed:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusPublished || next == StatusFailed || next == StatusDeadLetter
	default:
		return false
	}
}

func (status EventStatus) String() string {
	return string(status)
}
