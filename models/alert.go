package models

import (
	"time"

	"gorm.io/gorm"
)

const AlertTypePositiveReply = "positive_reply"

// HumanAlertLog is the audit and idempotency record for human
// notifications. The unique idempotency key is the sole gate against
// double-delivering an alert.
type HumanAlertLog struct {
	gorm.Model
	IdempotencyKey string `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	AlertType      string `gorm:"not null;index" json:"alert_type"`

	ReplyID uint  `gorm:"index" json:"reply_id"`
	LeadID  *uint `gorm:"index" json:"lead_id"`

	Recipients       string     `json:"recipients"` // comma separated
	SentSuccessfully bool       `gorm:"default:false" json:"sent_successfully"`
	SentAt           *time.Time `json:"sent_at"`
}
