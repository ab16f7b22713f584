package engine

import (
	"time"

	"outreachd/models"
)

// Pause reasons recorded on the campaign.
const (
	PauseReasonGoalMet          = "goal met"
	PauseReasonLossRateExceeded = "loss rate exceeded"
	PauseReasonStale            = "stale, no conversions"
)

// CampaignMetrics aggregates lead counts per status for one campaign.
type CampaignMetrics struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Enriched  int `json:"enriched"`
	Contacted int `json:"contacted"`
	Replied   int `json:"replied"`
	Qualified int `json:"qualified"`
	Lost      int `json:"lost"`

	ConversionRate float64 `json:"conversion_rate"`
	GoalProgress   float64 `json:"goal_progress"`
}

// ComputeMetrics derives the campaign metrics from per-status lead counts.
func ComputeMetrics(campaign *models.Campaign, counts map[string]int) CampaignMetrics {
	m := CampaignMetrics{
		New:       counts[models.LeadStatusNew],
		Enriched:  counts[models.LeadStatusEnriched],
		Contacted: counts[models.LeadStatusContacted],
		Replied:   counts[models.LeadStatusReplied],
		Qualified: counts[models.LeadStatusQualified],
		Lost:      counts[models.LeadStatusLost],
	}
	m.Total = m.New + m.Enriched + m.Contacted + m.Replied + m.Qualified + m.Lost

	if m.Total > 0 {
		m.ConversionRate = float64(m.Qualified) / float64(m.Total)
	}
	if campaign.TargetQualifiedCount > 0 {
		m.GoalProgress = float64(m.Qualified) / float64(campaign.TargetQualifiedCount)
	}
	return m
}

// ShouldPause decides whether the campaign should stop running, and why:
// goal reached, losing more than half of the decided leads, or aged out
// with nothing qualified.
func ShouldPause(campaign *models.Campaign, m CampaignMetrics, now time.Time) (bool, string) {
	if campaign.TargetQualifiedCount > 0 && m.GoalProgress >= 1.0 {
		return true, PauseReasonGoalMet
	}

	lossRate := float64(m.Lost) / float64(m.Qualified+m.Lost+m.Replied+1)
	if lossRate > 0.5 {
		return true, PauseReasonLossRateExceeded
	}

	if campaign.MaxAgeDays > 0 && m.Qualified == 0 {
		age := now.Sub(campaign.CreatedAt)
		if age > time.Duration(campaign.MaxAgeDays)*24*time.Hour {
			return true, PauseReasonStale
		}
	}
	return false, ""
}
