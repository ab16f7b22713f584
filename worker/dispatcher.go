package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreachd/engine"
	"outreachd/models"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DispatcherOptions tunes outreach scheduling and sending.
type DispatcherOptions struct {
	Location          *time.Location
	BaseDelay         time.Duration // delay at score 0
	FollowUpCutoff    time.Duration // stop following up after this long without a reply
	SendTimeout       time.Duration
	DefaultDailyLimit int  // applied when the campaign has no explicit limit
	DryRun            bool // behave like simulation mode for every campaign
}

// Dispatcher selects due leads, enforces the daily quota and hands
// messages to the send collaborator, recording an attempt for every try.
type Dispatcher struct {
	db      *gorm.DB
	sender  EmailSender
	builder MessageBuilder
	logger  *logrus.Logger
	opts    DispatcherOptions
}

// DispatchResult summarizes one campaign's dispatch pass. Skipped counts
// leads that were due but left for the next quota day.
type DispatchResult struct {
	Sent    int
	Failed  int
	Skipped int
	Errors  []error
}

func NewDispatcher(db *gorm.DB, sender EmailSender, builder MessageBuilder, logger *logrus.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 24 * time.Hour
	}
	if opts.FollowUpCutoff <= 0 {
		opts.FollowUpCutoff = 30 * 24 * time.Hour
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{db: db, sender: sender, builder: builder, logger: logger, opts: opts}
}

// RunDueOutreach processes every due lead of the campaign in score order.
// A single lead's failure never aborts the loop; an exhausted quota skips
// everything that remains because the quota is campaign-wide.
func (d *Dispatcher) RunDueOutreach(ctx context.Context, campaign *models.Campaign, now time.Time) (DispatchResult, error) {
	var result DispatchResult

	// An unset limit falls back to the worker-wide default for the cycle;
	// the stored row is not touched.
	if campaign.DailySendLimit <= 0 && d.opts.DefaultDailyLimit > 0 {
		campaign.DailySendLimit = d.opts.DefaultDailyLimit
	}

	usedToday, err := d.countUsedToday(campaign.ID, now)
	if err != nil {
		return result, err
	}

	var mailbox *models.Mailbox
	if campaign.HasSendChannel() {
		mailbox = &models.Mailbox{}
		if err := d.db.First(mailbox, *campaign.MailboxID).Error; err != nil {
			return result, fmt.Errorf("failed to load mailbox %d: %w", *campaign.MailboxID, err)
		}
	}

	var leads []models.Lead
	if err := d.db.
		Preload("LeadTags").
		Where("campaign_id = ? AND status IN ?", campaign.ID,
			[]string{models.LeadStatusNew, models.LeadStatusEnriched, models.LeadStatusContacted}).
		Where("next_action_at IS NULL OR next_action_at <= ?", now).
		Order("score DESC, attempt_count ASC, id ASC").
		Find(&leads).Error; err != nil {
		return result, fmt.Errorf("failed to query due leads: %w", err)
	}

	for i := range leads {
		lead := &leads[i]
		if engine.StopFollowUp(lead, now, d.opts.FollowUpCutoff) {
			continue
		}

		// Leads with enrichment data on record are promoted before
		// dispatch so their status reflects the pipeline stage even when
		// the quota defers the actual send.
		if lead.Enriched {
			if newStatus := engine.AfterEnrichment(lead); newStatus != lead.Status {
				if err := d.db.Model(&models.Lead{}).Where("id = ?", lead.ID).
					Update("status", newStatus).Error; err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("lead %d: failed to mark enriched: %w", lead.ID, err))
					continue
				}
				lead.Status = newStatus
			}
		}

		if err := engine.CanSend(campaign, usedToday); err != nil {
			if errors.Is(err, engine.ErrQuotaExceeded) {
				result.Skipped += d.countEligible(leads[i:], now)
				d.logger.WithFields(logrus.Fields{
					"campaign_id": campaign.ID,
					"skipped":     result.Skipped,
				}).Info("Daily quota exhausted, skipping remaining leads")
				break
			}
			return result, err
		}

		attemptResult, err := d.dispatchLead(ctx, campaign, mailbox, lead, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("lead %d: %w", lead.ID, err))
		}
		switch attemptResult {
		case models.AttemptResultSent, models.AttemptResultSimulated:
			result.Sent++
			usedToday++
		case models.AttemptResultFailed:
			result.Failed++
		}
	}

	return result, nil
}

// dispatchLead sends (or simulates) one message and records the outcome.
// The attempt row is written even when sending fails, both for retry
// accounting and so quota counting stays a pure function of history.
func (d *Dispatcher) dispatchLead(ctx context.Context, campaign *models.Campaign, mailbox *models.Mailbox, lead *models.Lead, now time.Time) (string, error) {
	messageID := fmt.Sprintf("<%s@outreachd>", uuid.NewString())
	simulated := campaign.Mode == models.CampaignModeSimulation || d.opts.DryRun

	attemptResult := models.AttemptResultSent
	if simulated {
		attemptResult = models.AttemptResultSimulated
	}

	var subject, body string
	var sendErr error
	if err := checkmail.ValidateFormat(lead.Email); err != nil {
		sendErr = fmt.Errorf("invalid recipient address: %w", err)
	} else if subject, body, sendErr = d.builder.Build(campaign, lead); sendErr == nil && !simulated {
		// Simulation still walks every step below so it exercises the
		// exact same transitions as a live send.
		sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		sendErr = d.sender.Send(sendCtx, OutboundEmail{
			Mailbox:   mailbox,
			To:        lead.Email,
			Subject:   subject,
			Body:      body,
			MessageID: messageID,
		})
		cancel()
		if sendErr != nil {
			sendErr = fmt.Errorf("%w: %v", ErrSendFailed, sendErr)
		}
	}
	if sendErr != nil {
		attemptResult = models.AttemptResultFailed
	}

	delivered := attemptResult != models.AttemptResultFailed
	nextAction := engine.NextActionAt(now, lead.Score, d.opts.BaseDelay)
	newStatus := engine.AfterAttempt(lead, delivered)

	txErr := d.db.Transaction(func(tx *gorm.DB) error {
		attempt := models.OutreachAttempt{
			LeadID:     lead.ID,
			CampaignID: campaign.ID,
			Result:     attemptResult,
			Channel:    models.AttemptChannelEmail,
			Subject:    subject,
			MessageID:  messageID,
		}
		if sendErr != nil {
			attempt.ErrorMessage = sendErr.Error()
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}

		updates := map[string]interface{}{
			"attempt_count":  gorm.Expr("attempt_count + ?", 1),
			"next_action_at": nextAction,
		}
		if delivered {
			updates["status"] = newStatus
			updates["last_contacted_at"] = now
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update lead: %w", err)
		}
		if delivered && !simulated && mailbox != nil {
			if err := tx.Model(mailbox).Update("last_used_at", now).Error; err != nil {
				return fmt.Errorf("failed to touch mailbox: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		return attemptResult, txErr
	}

	d.logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"lead_id":     lead.ID,
		"result":      attemptResult,
	}).Debug("Dispatched outreach attempt")

	lead.AttemptCount++
	if delivered {
		lead.Status = newStatus
		lead.LastContactedAt = &now
	}
	return attemptResult, sendErr
}

// countUsedToday counts quota-consuming attempts inside the current quota
// day. The rollover is purely date-based, so no reset job exists.
func (d *Dispatcher) countUsedToday(campaignID uint, now time.Time) (int, error) {
	start, end := engine.QuotaDay(now, d.opts.Location)
	var n int64
	err := d.db.Model(&models.OutreachAttempt{}).
		Where("campaign_id = ? AND result IN ? AND created_at >= ? AND created_at < ?",
			campaignID,
			[]string{models.AttemptResultSent, models.AttemptResultSimulated},
			start, end).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return int(n), nil
}

func (d *Dispatcher) countEligible(leads []models.Lead, now time.Time) int {
	n := 0
	for i := range leads {
		if !engine.StopFollowUp(&leads[i], now, d.opts.FollowUpCutoff) {
			n++
		}
	}
	return n
}
