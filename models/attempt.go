package models

import "gorm.io/gorm"

// Attempt results. SENT and SIMULATED both count against the daily quota;
// FAILED is recorded for retry accounting but does not consume quota.
const (
	AttemptResultSent      = "sent"
	AttemptResultFailed    = "failed"
	AttemptResultSimulated = "simulated"
)

const AttemptChannelEmail = "email"

// OutreachAttempt is an immutable record of one send (or one simulated
// send). Rows are append-only; quota counting and reply correlation both
// read from this table.
type OutreachAttempt struct {
	gorm.Model
	LeadID     uint `gorm:"not null;index" json:"lead_id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	Result  string `gorm:"not null;index" json:"result"`   // sent, failed, simulated
	Channel string `gorm:"default:'email'" json:"channel"` // email
	Subject string `json:"subject"`
	// MessageID is the outbound Message-ID header, used to correlate
	// inbound replies back to this attempt.
	MessageID string `gorm:"index" json:"message_id"`

	// Set when Result is failed
	ErrorMessage string `json:"error_message"`
}
