package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreachd/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createPositiveReply(t *testing.T, db *gorm.DB, leadID *uint) *models.InboundReply {
	t.Helper()
	reply := &models.InboundReply{
		MailboxID:   1,
		FromAddress: "ada@example.com",
		Subject:     "Re: Hello",
		Body:        "Sounds great, let's talk",
		MessageID:   "<reply-1@their-mta>",
		ReceivedAt:  time.Now().UTC(),
		Category:    models.ReplyCategoryPositive,
		LeadID:      leadID,
	}
	require.NoError(t, db.Create(reply).Error)
	return reply
}

func TestDispatchAlertsAtMostOnce(t *testing.T) {
	db := newTestDB(t)
	mb := createMailbox(t, db)
	campaign := createCampaign(t, db, mb, 5)
	lead := createLead(t, db, campaign.ID, "ada@example.com", 0.9, models.LeadStatusQualified)
	reply := createPositiveReply(t, db, &lead.ID)

	channel := &mockAlertChannel{}
	dispatcher := NewAlertDispatcher(db, channel, testLogger(), true, []string{"sales@example.com"})

	// Repeated cycles over the same backlog must produce exactly one
	// notification and one log row.
	for i := 0; i < 4; i++ {
		_, err := dispatcher.DispatchAlerts(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, channel.notified)

	var logs []models.HumanAlertLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, AlertIdempotencyKey(reply.ID), logs[0].IdempotencyKey)
	assert.Equal(t, models.AlertTypePositiveReply, logs[0].AlertType)
	assert.True(t, logs[0].SentSuccessfully)
	assert.Equal(t, "sales@example.com", logs[0].Recipients)

	var got models.InboundReply
	require.NoError(t, db.First(&got, reply.ID).Error)
	assert.True(t, got.AlertSent)
}

func TestDispatchAlertsRetriesAfterDeliveryFailure(t *testing.T) {
	db := newTestDB(t)
	reply := createPositiveReply(t, db, nil)

	channel := &mockAlertChannel{err: errors.New("smtp: 454 try later")}
	dispatcher := NewAlertDispatcher(db, channel, testLogger(), true, nil)

	delivered, err := dispatcher.DispatchAlerts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlertDeliveryFailed)
	assert.Equal(t, 0, delivered)

	// Nothing was persisted, so the reply stays in the backlog.
	var logs int64
	require.NoError(t, db.Model(&models.HumanAlertLog{}).Count(&logs).Error)
	assert.EqualValues(t, 0, logs)
	var got models.InboundReply
	require.NoError(t, db.First(&got, reply.ID).Error)
	assert.False(t, got.AlertSent)

	// The channel recovers and the next cycle drains the backlog.
	channel.err = nil
	delivered, err = dispatcher.DispatchAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, channel.notified)
}

func TestDispatchAlertsRepairsFlagFromExistingLog(t *testing.T) {
	db := newTestDB(t)
	reply := createPositiveReply(t, db, nil)

	// A previous cycle logged the alert but crashed before flipping the
	// flag. The dispatcher must repair without notifying again.
	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.HumanAlertLog{
		IdempotencyKey:   AlertIdempotencyKey(reply.ID),
		AlertType:        models.AlertTypePositiveReply,
		ReplyID:          reply.ID,
		SentSuccessfully: true,
		SentAt:           &now,
	}).Error)

	channel := &mockAlertChannel{}
	dispatcher := NewAlertDispatcher(db, channel, testLogger(), true, nil)

	_, err := dispatcher.DispatchAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, channel.notified)

	var got models.InboundReply
	require.NoError(t, db.First(&got, reply.ID).Error)
	assert.True(t, got.AlertSent)
}

func TestDispatchAlertsDisabled(t *testing.T) {
	db := newTestDB(t)
	createPositiveReply(t, db, nil)

	channel := &mockAlertChannel{}
	dispatcher := NewAlertDispatcher(db, channel, testLogger(), false, nil)

	delivered, err := dispatcher.DispatchAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, channel.notified)
}

func TestDispatchAlertsIgnoresNonPositive(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.InboundReply{
		MailboxID:   1,
		FromAddress: "ada@example.com",
		Body:        "out of office until Monday",
		MessageID:   "<reply-2@their-mta>",
		ReceivedAt:  time.Now().UTC(),
		Category:    models.ReplyCategoryOutOfOffice,
	}).Error)

	channel := &mockAlertChannel{}
	dispatcher := NewAlertDispatcher(db, channel, testLogger(), true, nil)

	delivered, err := dispatcher.DispatchAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 0, channel.notified)
}
