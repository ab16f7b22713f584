package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign modes
const (
	CampaignModeLive       = "live"
	CampaignModeSimulation = "simulation"
)

// Campaign represents one outreach effort. The worker reads it every cycle;
// only the decision engine (or the operator, externally) flips Active.
type Campaign struct {
	gorm.Model
	Name string `gorm:"not null" json:"name"`

	Active bool   `gorm:"default:true;index" json:"active"`
	Mode   string `gorm:"default:'live'" json:"mode"` // live, simulation

	// Sending policy
	DailySendLimit       int   `gorm:"default:20" json:"daily_send_limit"`
	TargetQualifiedCount int   `gorm:"default:0" json:"target_qualified_count"`
	MaxAgeDays           int   `gorm:"default:0" json:"max_age_days"`
	MailboxID            *uint `gorm:"index" json:"mailbox_id"` // send/receive channel; nil = none configured

	// Message template used by the default builder
	Subject      string `json:"subject"`
	BodyTemplate string `gorm:"type:text" json:"body_template"`

	// Set by the decision engine when it pauses the campaign
	PausedReason string     `json:"paused_reason"`
	PausedAt     *time.Time `json:"paused_at"`

	// Relations
	Leads   []Lead   `gorm:"foreignKey:CampaignID" json:"leads,omitempty"`
	Mailbox *Mailbox `gorm:"foreignKey:MailboxID" json:"mailbox,omitempty"`
}

// HasSendChannel reports whether the campaign can deliver mail at all.
func (c *Campaign) HasSendChannel() bool {
	return c.MailboxID != nil
}
