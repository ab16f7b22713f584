package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead statuses. Transitions between them are computed in the engine
// package; nothing else is allowed to invent a status.
const (
	LeadStatusNew       = "new"
	LeadStatusEnriched  = "enriched"
	LeadStatusContacted = "contacted"
	LeadStatusReplied   = "replied"
	LeadStatusQualified = "qualified"
	LeadStatusLost      = "lost"
)

// Tags with special meaning to the worker.
const (
	TagDoNotContact = "do_not_contact"
	TagHot          = "hot"
)

// Lead represents a single prospect inside a campaign. Leads are created by
// discovery (an external collaborator) and are never deleted, only
// transitioned to a terminal status.
type Lead struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`

	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`

	Status string  `gorm:"default:'new';index" json:"status"`
	Score  float64 `gorm:"default:0" json:"score"` // 0..1, set by enrichment

	Enriched       bool `gorm:"default:false" json:"enriched"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	AttemptCount    int        `gorm:"default:0" json:"attempt_count"`
	NextActionAt    *time.Time `gorm:"index" json:"next_action_at"`
	LastContactedAt *time.Time `json:"last_contacted_at"`

	// Populated when the worker moves the lead to lost
	LostReason string `json:"lost_reason"`

	// Relations
	LeadTags []LeadTag `gorm:"foreignKey:LeadID" json:"tags,omitempty"`
	Campaign Campaign  `json:"-"`
}

// LeadTag represents tags for leads (normalized)
type LeadTag struct {
	gorm.Model
	LeadID uint   `gorm:"not null;index" json:"lead_id"`
	Tag    string `gorm:"not null;index" json:"tag"`
}

// HasTag reports whether the lead carries the given tag. LeadTags must have
// been preloaded.
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.LeadTags {
		if t.Tag == tag {
			return true
		}
	}
	return false
}
