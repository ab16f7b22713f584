package worker

import (
	"fmt"
	"time"

	"outreachd/engine"
	"outreachd/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const lostReasonNoReply = "no reply within follow-up window"

// DecisionEngine times out stale leads and decides per cycle whether a
// campaign should keep running. It is the only component allowed to flip
// Campaign.Active automatically.
type DecisionEngine struct {
	db         *gorm.DB
	logger     *logrus.Logger
	staleAfter time.Duration
}

func NewDecisionEngine(db *gorm.DB, logger *logrus.Logger, staleAfter time.Duration) *DecisionEngine {
	if staleAfter <= 0 {
		staleAfter = 30 * 24 * time.Hour
	}
	return &DecisionEngine{db: db, logger: logger, staleAfter: staleAfter}
}

// SweepStaleLeads moves contacted leads past the follow-up window with no
// reply on record to lost. Returns the number of leads timed out.
func (de *DecisionEngine) SweepStaleLeads(campaign *models.Campaign, now time.Time) (int, error) {
	cutoff := now.Add(-de.staleAfter)

	res := de.db.Model(&models.Lead{}).
		Where("campaign_id = ? AND status = ? AND last_contacted_at IS NOT NULL AND last_contacted_at <= ?",
			campaign.ID, models.LeadStatusContacted, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM inbound_replies WHERE inbound_replies.lead_id = leads.id AND inbound_replies.deleted_at IS NULL)").
		Updates(map[string]interface{}{
			"status":      models.LeadStatusLost,
			"lost_reason": lostReasonNoReply,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep stale leads: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		de.logger.WithFields(logrus.Fields{
			"campaign_id": campaign.ID,
			"lost":        res.RowsAffected,
		}).Info("Timed out stale leads")
	}
	return int(res.RowsAffected), nil
}

// Metrics aggregates the campaign's lead counts into decision inputs.
func (de *DecisionEngine) Metrics(campaign *models.Campaign) (engine.CampaignMetrics, error) {
	var rows []struct {
		Status string
		Count  int
	}
	if err := de.db.Model(&models.Lead{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaign.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return engine.CampaignMetrics{}, fmt.Errorf("failed to count leads: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return engine.ComputeMetrics(campaign, counts), nil
}

// EvaluateCampaign computes metrics and pauses the campaign when a stop
// condition holds, recording the reason for the operator.
func (de *DecisionEngine) EvaluateCampaign(campaign *models.Campaign, now time.Time) (bool, string, error) {
	metrics, err := de.Metrics(campaign)
	if err != nil {
		return false, "", err
	}

	pause, reason := engine.ShouldPause(campaign, metrics, now)
	if !pause {
		return false, "", nil
	}

	if err := de.db.Model(campaign).Updates(map[string]interface{}{
		"active":        false,
		"paused_reason": reason,
		"paused_at":     now,
	}).Error; err != nil {
		return false, "", fmt.Errorf("failed to pause campaign: %w", err)
	}

	de.logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"reason":      reason,
		"qualified":   metrics.Qualified,
		"lost":        metrics.Lost,
	}).Warn("Campaign paused")
	campaign.Active = false
	campaign.PausedReason = reason
	return true, reason, nil
}
