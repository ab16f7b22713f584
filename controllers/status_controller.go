package controller

import (
	"outreachd/engine"
	"outreachd/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StatusController exposes read-only views over the worker's persisted
// state: heartbeat, per-campaign metrics and the alert backlog. All
// mutations happen through the worker or external operator tooling; this
// surface never writes.
type StatusController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewStatusController(db *gorm.DB, logger *logrus.Logger) *StatusController {
	return &StatusController{DB: db, Logger: logger}
}

// GetWorkers returns every worker heartbeat row.
func (sc *StatusController) GetWorkers(c *fiber.Ctx) error {
	var heartbeats []models.WorkerHeartbeat
	if err := sc.DB.Order("last_seen_at DESC").Find(&heartbeats).Error; err != nil {
		sc.Logger.WithField("error", err).Error("Failed to fetch worker heartbeats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch worker status",
		})
	}
	return c.JSON(fiber.Map{"workers": heartbeats})
}

// GetCampaigns returns all campaigns with their computed metrics.
func (sc *StatusController) GetCampaigns(c *fiber.Ctx) error {
	var campaigns []models.Campaign
	if err := sc.DB.Order("id ASC").Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	type campaignStatus struct {
		models.Campaign
		Metrics engine.CampaignMetrics `json:"metrics"`
	}

	out := make([]campaignStatus, 0, len(campaigns))
	for i := range campaigns {
		metrics, err := sc.campaignMetrics(&campaigns[i])
		if err != nil {
			sc.Logger.WithFields(logrus.Fields{
				"campaign_id": campaigns[i].ID,
				"error":       err,
			}).Error("Failed to compute campaign metrics")
			continue
		}
		out = append(out, campaignStatus{Campaign: campaigns[i], Metrics: metrics})
	}
	return c.JSON(fiber.Map{"campaigns": out})
}

// GetAlertBacklog returns positive replies still waiting for a human
// notification, plus attempt-failure counts for quick triage.
func (sc *StatusController) GetAlertBacklog(c *fiber.Ctx) error {
	var backlog []models.InboundReply
	if err := sc.DB.
		Where("category = ? AND alert_sent = ?", models.ReplyCategoryPositive, false).
		Order("received_at ASC").
		Find(&backlog).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch alert backlog",
		})
	}

	var failedAttempts int64
	sc.DB.Model(&models.OutreachAttempt{}).
		Where("result = ?", models.AttemptResultFailed).
		Count(&failedAttempts)

	return c.JSON(fiber.Map{
		"pending_alerts":  backlog,
		"failed_attempts": failedAttempts,
	})
}

func (sc *StatusController) campaignMetrics(campaign *models.Campaign) (engine.CampaignMetrics, error) {
	var rows []struct {
		Status string
		Count  int
	}
	if err := sc.DB.Model(&models.Lead{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaign.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return engine.CampaignMetrics{}, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return engine.ComputeMetrics(campaign, counts), nil
}
