package models

import "time"

// Worker statuses
const (
	WorkerStatusRunning = "running"
	WorkerStatusStopped = "stopped"
	WorkerStatusDead    = "dead"
)

// LockSlotName is the single advisory slot every worker instance contends
// on. The lock lives in exactly one physical row so that concurrent
// claimers serialize on its row lock.
const LockSlotName = "outreach-worker"

// WorkerHeartbeat is the advisory lock slot row: one row per slot name,
// claimed by conditional UPDATE with an affected-row check. The holder
// column records which instance currently owns the slot. No soft delete:
// the lock manager drives it with raw conditional updates and needs the
// table contents to be exactly what is visible.
type WorkerHeartbeat struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	SlotName       string    `gorm:"uniqueIndex;not null" json:"slot_name"`
	HolderWorkerID string    `gorm:"not null;default:''" json:"holder_worker_id"`
	Status         string    `gorm:"not null;default:'stopped';index" json:"status"`
	LastSeenAt     time.Time `gorm:"not null" json:"last_seen_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
