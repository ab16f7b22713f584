package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreachd/engine"
	"outreachd/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReplyIntake polls configured mailboxes for new messages, classifies
// them, links them back to the originating attempt and advances the lead.
type ReplyIntake struct {
	db          *gorm.DB
	reader      MailboxReader
	logger      *logrus.Logger
	pollTimeout time.Duration
}

func NewReplyIntake(db *gorm.DB, reader MailboxReader, logger *logrus.Logger, pollTimeout time.Duration) *ReplyIntake {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &ReplyIntake{db: db, reader: reader, logger: logger, pollTimeout: pollTimeout}
}

// ProcessNewReplies pulls messages received since each mailbox's
// high-water mark and ingests them. One broken mailbox only loses its own
// batch; the others are still polled. Returns per-category counts.
func (ri *ReplyIntake) ProcessNewReplies(ctx context.Context, now time.Time) (map[string]int, error) {
	counts := make(map[string]int)

	var mailboxes []models.Mailbox
	if err := ri.db.Where("is_active = ? AND imap_host <> ''", true).Find(&mailboxes).Error; err != nil {
		return counts, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	var firstErr error
	for i := range mailboxes {
		mb := &mailboxes[i]
		if err := ri.processMailbox(ctx, mb, now, counts); err != nil {
			ri.logger.WithFields(logrus.Fields{
				"mailbox_id": mb.ID,
				"error":      err,
			}).Error("Failed to process mailbox")
			ri.db.Model(mb).Update("last_error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return counts, firstErr
}

func (ri *ReplyIntake) processMailbox(ctx context.Context, mb *models.Mailbox, now time.Time, counts map[string]int) error {
	var cursor models.MailboxCursor
	err := ri.db.Where("mailbox_id = ?", mb.ID).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cursor = models.MailboxCursor{MailboxID: mb.ID}
		if err := ri.db.Create(&cursor).Error; err != nil {
			return fmt.Errorf("failed to create mailbox cursor: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to load mailbox cursor: %w", err)
	}

	pollCtx, cancel := context.WithTimeout(ctx, ri.pollTimeout)
	defer cancel()
	messages, err := ri.reader.FetchNewSince(pollCtx, mb, cursor.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("mailbox poll failed: %w", err)
	}

	var ingestErr error
	for _, msg := range messages {
		if err := ri.ingestMessage(mb, msg, counts); err != nil {
			ri.logger.WithFields(logrus.Fields{
				"mailbox_id": mb.ID,
				"message_id": msg.MessageID,
				"error":      err,
			}).Error("Failed to ingest reply")
			if ingestErr == nil {
				ingestErr = fmt.Errorf("failed to ingest message %q: %w", msg.MessageID, err)
			}
		}
	}

	// Advance the high-water mark only when the whole batch went in. A
	// failed message has no reply row yet, so holding the cursor is the
	// only way it gets re-read; messages that did land are skipped on the
	// re-read by their message id.
	if ingestErr != nil {
		return ingestErr
	}
	return ri.db.Model(&models.MailboxCursor{}).
		Where("mailbox_id = ?", mb.ID).
		Update("last_synced_at", now).Error
}

// ingestMessage classifies, correlates and persists one inbound message.
// The reply row is written even when no attempt or lead matches; leads in
// a terminal state keep their status but still get the reply on record.
func (ri *ReplyIntake) ingestMessage(mb *models.Mailbox, msg RawMessage, counts map[string]int) error {
	if msg.MessageID != "" {
		var n int64
		if err := ri.db.Model(&models.InboundReply{}).
			Where("message_id = ?", msg.MessageID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil // already ingested on an earlier overlapping poll
		}
	}

	category := engine.ClassifyReply(msg.Subject, msg.Body, msg.AutoSubmitted)

	attempt, lead, err := ri.correlate(msg)
	if err != nil {
		return err
	}

	reply := models.InboundReply{
		MailboxID:   mb.ID,
		FromAddress: msg.Sender,
		Subject:     msg.Subject,
		Body:        msg.Body,
		MessageID:   msg.MessageID,
		ThreadID:    msg.ThreadID,
		ReceivedAt:  msg.ReceivedAt,
		Category:    category,
	}
	if attempt != nil {
		reply.AttemptID = &attempt.ID
		reply.CampaignID = &attempt.CampaignID
	}
	if lead != nil {
		reply.LeadID = &lead.ID
		if reply.CampaignID == nil {
			reply.CampaignID = &lead.CampaignID
		}
	}

	return ri.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reply).Error; err != nil {
			return fmt.Errorf("failed to persist reply: %w", err)
		}
		counts[category]++

		if lead == nil {
			return nil
		}
		newStatus := engine.AfterReply(lead, category)
		if newStatus == lead.Status {
			return nil
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).
			Update("status", newStatus).Error; err != nil {
			return fmt.Errorf("failed to advance lead: %w", err)
		}
		ri.logger.WithFields(logrus.Fields{
			"lead_id":  lead.ID,
			"category": category,
			"status":   newStatus,
		}).Info("Lead advanced by reply")
		lead.Status = newStatus
		return nil
	})
}

// correlate resolves the originating attempt via the thread/message id and
// falls back to a best-effort lead lookup by sender address.
func (ri *ReplyIntake) correlate(msg RawMessage) (*models.OutreachAttempt, *models.Lead, error) {
	if msg.ThreadID != "" {
		var attempt models.OutreachAttempt
		err := ri.db.Where("message_id = ?", msg.ThreadID).First(&attempt).Error
		if err == nil {
			var lead models.Lead
			if err := ri.db.Preload("LeadTags").First(&lead, attempt.LeadID).Error; err != nil {
				return &attempt, nil, fmt.Errorf("failed to load lead %d: %w", attempt.LeadID, err)
			}
			return &attempt, &lead, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("failed to match attempt: %w", err)
		}
	}

	if msg.Sender == "" {
		return nil, nil, nil
	}
	var lead models.Lead
	err := ri.db.Preload("LeadTags").
		Where("email = ?", msg.Sender).
		Order("last_contacted_at DESC NULLS LAST, id DESC").
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up lead by sender: %w", err)
	}
	return nil, &lead, nil
}
