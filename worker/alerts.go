package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"outreachd/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AlertDispatcher sends at-most-once human notifications for positive
// replies. The persisted idempotency key is the only gate against double
// delivery; an undelivered alert simply stays in the backlog and is
// retried next cycle.
type AlertDispatcher struct {
	db         *gorm.DB
	channel    AlertChannel
	logger     *logrus.Logger
	enabled    bool
	recipients []string
}

func NewAlertDispatcher(db *gorm.DB, channel AlertChannel, logger *logrus.Logger, enabled bool, recipients []string) *AlertDispatcher {
	return &AlertDispatcher{db: db, channel: channel, logger: logger, enabled: enabled, recipients: recipients}
}

// AlertIdempotencyKey derives the deterministic key for a reply's alert.
func AlertIdempotencyKey(replyID uint) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("reply:%d", replyID)))
	return hex.EncodeToString(sum[:])
}

// DispatchAlerts notifies a human about every positive reply that has not
// been alerted yet. Returns the number of alerts delivered this cycle.
func (ad *AlertDispatcher) DispatchAlerts(ctx context.Context) (int, error) {
	if !ad.enabled {
		return 0, nil
	}

	var replies []models.InboundReply
	if err := ad.db.
		Where("category = ? AND alert_sent = ?", models.ReplyCategoryPositive, false).
		Order("id ASC").
		Find(&replies).Error; err != nil {
		return 0, fmt.Errorf("failed to query alert backlog: %w", err)
	}

	delivered := 0
	var firstErr error
	for i := range replies {
		reply := &replies[i]
		if err := ad.dispatchOne(ctx, reply); err != nil {
			ad.logger.WithFields(logrus.Fields{
				"reply_id": reply.ID,
				"error":    err,
			}).Error("Alert delivery failed, will retry next cycle")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}
	return delivered, firstErr
}

func (ad *AlertDispatcher) dispatchOne(ctx context.Context, reply *models.InboundReply) error {
	key := AlertIdempotencyKey(reply.ID)

	// Defensive double-check against a concurrent or re-run cycle: an
	// existing log row means the alert already went out, so only the
	// flag needs repair.
	var existing models.HumanAlertLog
	err := ad.db.Where("idempotency_key = ?", key).First(&existing).Error
	if err == nil {
		return ad.db.Model(reply).Update("alert_sent", true).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check idempotency key: %w", err)
	}

	title, body, metadata := ad.composeAlert(reply)
	if err := ad.channel.Notify(ctx, title, body, metadata); err != nil {
		return fmt.Errorf("%w: %v", ErrAlertDeliveryFailed, err)
	}

	now := time.Now().UTC()
	return ad.db.Transaction(func(tx *gorm.DB) error {
		logRow := models.HumanAlertLog{
			IdempotencyKey:   key,
			AlertType:        models.AlertTypePositiveReply,
			ReplyID:          reply.ID,
			LeadID:           reply.LeadID,
			Recipients:       strings.Join(ad.recipients, ","),
			SentSuccessfully: true,
			SentAt:           &now,
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return fmt.Errorf("failed to write alert log: %w", err)
		}
		if err := tx.Model(reply).Update("alert_sent", true).Error; err != nil {
			return fmt.Errorf("failed to mark reply alerted: %w", err)
		}
		return nil
	})
}

func (ad *AlertDispatcher) composeAlert(reply *models.InboundReply) (string, string, map[string]string) {
	title := "Positive reply received"
	metadata := map[string]string{
		"reply_id": fmt.Sprintf("%d", reply.ID),
		"from":     reply.FromAddress,
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("From: %s", reply.FromAddress))
	lines = append(lines, fmt.Sprintf("Subject: %s", reply.Subject))

	if reply.LeadID != nil {
		var lead models.Lead
		if err := ad.db.First(&lead, *reply.LeadID).Error; err == nil {
			title = fmt.Sprintf("Positive reply from %s", lead.Email)
			metadata["lead_id"] = fmt.Sprintf("%d", lead.ID)
			metadata["campaign_id"] = fmt.Sprintf("%d", lead.CampaignID)
			lines = append(lines, fmt.Sprintf("Lead: %s %s (%s)", lead.FirstName, lead.LastName, lead.Company))
		}
	}

	body := reply.Body
	if len(body) > 2000 {
		body = body[:2000] + "…"
	}
	lines = append(lines, "", body)
	return title, strings.Join(lines, "\n"), metadata
}
