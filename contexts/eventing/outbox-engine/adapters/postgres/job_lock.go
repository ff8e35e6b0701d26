package postgresadapter

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
)

// JobLock coordinates single-runner jobs across the fleet with Postgres
// session advisory locks. No row is persisted: the lock lives on the
// database session, so a crashed holder releases it automatically when its
// connection drops.
type JobLock struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewJobLock(db *gorm.DB, logger *slog.Logger) *JobLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobLock{db: db, logger: logger}
}

// WithLock runs fn while holding the named lock, pinning one pooled
// connection for the whole call: session locks must be released on the same
// session that acquired them. Returns (false, nil) without running fn when
// another holder has the key; never blocks waiting.
func (l *JobLock) WithLock(ctx context.Context, key string, fn func(context.Context) error) (bool, error) {
	var acquired bool
	err := l.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var got bool
		if err := conn.Raw("SELECT pg_try_advisory_lock(hashtext(?))", key).Scan(&got).Error; err != nil {
			return err
		}
		if !got {
			return nil
		}
		acquired = true

		defer func() {
			var released bool
			if err := conn.Raw("SELECT pg_advisory_unlock(hashtext(?))", key).Scan(&released).Error; err != nil {
				l.logger.Error("advisory lock release failed",
					"event", "job_lock_release_failed",
					"module", "eventing/outbox-engine",
					"layer", "adapter",
					"lock_key", key,
					"error", err.Error(),
				)
			}
		}()
		return fn(ctx)
	})
	return acquired, err
}
