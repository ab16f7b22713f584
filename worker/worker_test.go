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

func newTestWorker(db *gorm.DB, sender EmailSender, reader MailboxReader, channel AlertChannel) *Worker {
	logger := testLogger()
	dispatcher := NewDispatcher(db, sender, stubBuilder{}, logger, DispatcherOptions{
		Location:  time.UTC,
		BaseDelay: 24 * time.Hour,
	})
	intake := NewReplyIntake(db, reader, logger, 0)
	decisions := NewDecisionEngine(db, logger, 0)
	alerts := NewAlertDispatcher(db, channel, logger, true, []string{"sales@example.com"})
	opts := Options{WorkerID: "worker-test", Interval: 10 * time.Millisecond, LockTTL: time.Minute}
	return New(db, logger, opts, dispatcher, intake, decisions, alerts)
}

func TestRunCycleFullPipeline(t *testing.T) {
	db := newTestDB(t)
	mb := createMailbox(t, db)
	campaign := createCampaign(t, db, mb, 5)
	lead := createLead(t, db, campaign.ID, "ada@example.com", 0.3, models.LeadStatusNew)

	sender := &mockSender{}
	reader := &mockReader{}
	channel := &mockAlertChannel{}
	w := newTestWorker(db, sender, reader, channel)

	// Cycle one: the lead is due and gets contacted.
	errs := w.RunCycle(context.Background(), time.Now().UTC())
	assert.Empty(t, errs)
	assert.Equal(t, 1, sender.sentCount())

	var attempt models.OutreachAttempt
	require.NoError(t, db.Where("lead_id = ?", lead.ID).First(&attempt).Error)
	var got models.Lead
	require.NoError(t, db.First(&got, lead.ID).Error)
	assert.Equal(t, models.LeadStatusContacted, got.Status)

	// Cycle two: a positive reply arrives in the same thread; the lead is
	// qualified and the human alert goes out within the cycle.
	reader.messages = []RawMessage{{
		Sender:     lead.Email,
		Subject:    "Re: Hello",
		Body:       "Sounds great, let's talk",
		MessageID:  "<reply-1@their-mta>",
		ThreadID:   attempt.MessageID,
		ReceivedAt: time.Now().UTC(),
	}}
	errs = w.RunCycle(context.Background(), time.Now().UTC())
	assert.Empty(t, errs)

	require.NoError(t, db.First(&got, lead.ID).Error)
	assert.Equal(t, models.LeadStatusQualified, got.Status)
	assert.Equal(t, 1, channel.notified)

	var alerts int64
	require.NoError(t, db.Model(&models.HumanAlertLog{}).Count(&alerts).Error)
	assert.EqualValues(t, 1, alerts)
}

func TestRunCycleIsolatesStepFailures(t *testing.T) {
	db := newTestDB(t)
	mb := createMailbox(t, db)
	campaign := createCampaign(t, db, mb, 5)
	lead := createLead(t, db, campaign.ID, "ada@example.com", 0.9, models.LeadStatusQualified)
	createPositiveReply(t, db, &lead.ID)

	sender := &mockSender{}
	reader := &mockReader{err: errors.New("imap: connection refused")}
	channel := &mockAlertChannel{}
	w := newTestWorker(db, sender, reader, channel)

	errs := w.RunCycle(context.Background(), time.Now().UTC())
	require.NotEmpty(t, errs)

	// The broken intake step is reported but the alert step still ran.
	assert.Equal(t, 1, channel.notified)
}

func TestRunCycleSkipsStepsAfterCancel(t *testing.T) {
	db := newTestDB(t)
	mb := createMailbox(t, db)
	campaign := createCampaign(t, db, mb, 5)
	createLead(t, db, campaign.ID, "ada@example.com", 0.9, models.LeadStatusNew)

	sender := &mockSender{}
	reader := &mockReader{}
	channel := &mockAlertChannel{}
	w := newTestWorker(db, sender, reader, channel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := w.RunCycle(ctx, time.Now().UTC())
	assert.Empty(t, errs)
	assert.Equal(t, 0, sender.sentCount())
	assert.Empty(t, reader.sinces)
	assert.Equal(t, 0, channel.notified)
}

func TestWorkerStartAcquiresAndReleasesLock(t *testing.T) {
	db := newTestDB(t)

	sender := &mockSender{}
	reader := &mockReader{}
	channel := &mockAlertChannel{}
	w := newTestWorker(db, sender, reader, channel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		var slot models.WorkerHeartbeat
		if err := db.Where("slot_name = ?", models.LockSlotName).First(&slot).Error; err != nil {
			return false
		}
		return slot.HolderWorkerID == "worker-test" && slot.Status == models.WorkerStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	var slot models.WorkerHeartbeat
	require.NoError(t, db.Where("slot_name = ?", models.LockSlotName).First(&slot).Error)
	assert.Equal(t, "worker-test", slot.HolderWorkerID)
	assert.Equal(t, models.WorkerStatusStopped, slot.Status)
}
