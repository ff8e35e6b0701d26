package memory

import (
	"context"
	"sync"

	"herald/contexts/eventing/outbox-engine/ports"
)

// JobLock is a process-local stand-in for the advisory lock adapter. A held
// key makes every other WithLock call on the same key report not acquired.
type JobLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewJobLock() *JobLock {
	return &JobLock{held: make(map[string]bool)}
}

func (l *JobLock) WithLock(ctx context.Context, key string, fn func(context.Context) error) (bool, error) {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return false, nil
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return true, fn(ctx)
}

var _ ports.JobLock = (*JobLock)(nil)
