package worker

import (
	"fmt"
	"time"

	"outreachd/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockManager implements the advisory worker lock on top of the
// worker_heartbeats slot row. The lock must survive process restarts, so a
// database row stands in for a language-level mutex; every mutation is a
// conditional UPDATE of the one shared slot row checked by affected-row
// count rather than a read-then-write. All claimers target the same
// physical row, so concurrent transactions queue on its row lock and the
// loser re-evaluates its WHERE against the winner's committed state.
type LockManager struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewLockManager(db *gorm.DB, logger *logrus.Logger) *LockManager {
	return &LockManager{db: db, logger: logger}
}

// Acquire attempts to take the single worker slot. It returns true when
// this worker now holds the lock, false when another instance is active
// within the TTL window. A slot abandoned by a crashed worker (running but
// past the TTL) is marked dead and taken over in the same transaction.
func (lm *LockManager) Acquire(workerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-ttl)

	acquired := false
	err := lm.db.Transaction(func(tx *gorm.DB) error {
		// First boot: make sure the slot row exists.
		slot := models.WorkerHeartbeat{
			SlotName:   models.LockSlotName,
			Status:     models.WorkerStatusStopped,
			LastSeenAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot_name"}},
			DoNothing: true,
		}).Create(&slot).Error; err != nil {
			return fmt.Errorf("failed to ensure lock slot row: %w", err)
		}

		// Mark an abandoned slot dead so the claim below can take over.
		reap := tx.Exec(
			"UPDATE worker_heartbeats SET status = ?, updated_at = ? WHERE slot_name = ? AND status = ? AND last_seen_at < ?",
			models.WorkerStatusDead, now, models.LockSlotName, models.WorkerStatusRunning, cutoff,
		)
		if reap.Error != nil {
			return fmt.Errorf("failed to reap stale lock holder: %w", reap.Error)
		}
		if reap.RowsAffected > 0 {
			lm.logger.WithFields(logrus.Fields{
				"worker_id": workerID,
				"reclaimed": reap.RowsAffected,
			}).Warn("Reclaimed stale worker lock")
		}

		// Claim the slot. A concurrent claimer blocks on the row lock
		// taken here and, once it gets through, sees a fresh running
		// holder and affects zero rows instead of clobbering the winner.
		// The holder itself may always refresh its own claim.
		claim := tx.Exec(
			`UPDATE worker_heartbeats SET holder_worker_id = ?, status = ?, last_seen_at = ?, updated_at = ?
			 WHERE slot_name = ?
			   AND (status <> ? OR last_seen_at < ? OR holder_worker_id = ?)`,
			workerID, models.WorkerStatusRunning, now, now,
			models.LockSlotName,
			models.WorkerStatusRunning, cutoff, workerID,
		)
		if claim.Error != nil {
			return fmt.Errorf("failed to claim worker lock: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return ErrLockUnavailable
		}
		acquired = true
		return nil
	})

	if err == ErrLockUnavailable {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Heartbeat refreshes last_seen_at for a held lock. Zero rows affected
// means the slot was reclaimed from under us and the loop must stop:
// better to halt than to run unlocked.
func (lm *LockManager) Heartbeat(workerID string) error {
	now := time.Now().UTC()
	res := lm.db.Exec(
		"UPDATE worker_heartbeats SET last_seen_at = ?, updated_at = ? WHERE slot_name = ? AND holder_worker_id = ? AND status = ?",
		now, now, models.LockSlotName, workerID, models.WorkerStatusRunning,
	)
	if res.Error != nil {
		return fmt.Errorf("failed to update heartbeat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLockLost
	}
	return nil
}

// Release marks the slot stopped on graceful shutdown. The row stays
// behind so the next acquisition transitions it back to running.
func (lm *LockManager) Release(workerID string) error {
	now := time.Now().UTC()
	res := lm.db.Exec(
		"UPDATE worker_heartbeats SET status = ?, last_seen_at = ?, updated_at = ? WHERE slot_name = ? AND holder_worker_id = ? AND status = ?",
		models.WorkerStatusStopped, now, now, models.LockSlotName, workerID, models.WorkerStatusRunning,
	)
	if res.Error != nil {
		return fmt.Errorf("failed to release worker lock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		lm.logger.WithField("worker_id", workerID).Warn("Release called without a held lock")
	}
	return nil
}
