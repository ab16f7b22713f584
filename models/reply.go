package models

import (
	"time"

	"gorm.io/gorm"
)

// Reply categories produced by the rule classifier.
const (
	ReplyCategoryPositive    = "positive"
	ReplyCategoryNegative    = "negative"
	ReplyCategoryNeutral     = "neutral"
	ReplyCategoryAutoReply   = "auto_reply"
	ReplyCategoryOutOfOffice = "out_of_office"
	ReplyCategoryUnknown     = "unknown"
)

// InboundReply is a received message, linked back to the originating
// attempt and lead when correlation succeeds. Rows are append-only.
type InboundReply struct {
	gorm.Model
	AttemptID  *uint `gorm:"index" json:"attempt_id"` // nil when unmatched
	LeadID     *uint `gorm:"index" json:"lead_id"`
	CampaignID *uint `gorm:"index" json:"campaign_id"`
	MailboxID  uint  `gorm:"index" json:"mailbox_id"`

	FromAddress string    `gorm:"not null;index" json:"from_address"`
	Subject     string    `json:"subject"`
	Body        string    `gorm:"type:text" json:"body"`
	MessageID   string    `gorm:"index" json:"message_id"`
	ThreadID    string    `gorm:"index" json:"thread_id"`
	ReceivedAt  time.Time `gorm:"not null" json:"received_at"`

	Category  string `gorm:"default:'unknown';index" json:"category"`
	AlertSent bool   `gorm:"default:false;index" json:"alert_sent"`
}

// MailboxCursor persists the per-mailbox high-water mark for reply intake,
// so a restarted worker resumes where the previous one stopped.
type MailboxCursor struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	MailboxID    uint      `gorm:"uniqueIndex;not null" json:"mailbox_id"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
