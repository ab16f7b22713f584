package worker

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"outreachd/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateDB(db))
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func createMailbox(t *testing.T, db *gorm.DB) *models.Mailbox {
	t.Helper()
	mb := &models.Mailbox{
		Name:      "primary",
		FromEmail: "outreach@example.com",
		FromName:  "Outreach",
		SMTPHost:  "smtp.example.com",
		SMTPPort:  587,
		IMAPHost:  "imap.example.com",
		IMAPPort:  993,
		IsActive:  true,
	}
	require.NoError(t, db.Create(mb).Error)
	return mb
}

func createCampaign(t *testing.T, db *gorm.DB, mb *models.Mailbox, limit int) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Name:           "launch",
		Active:         true,
		Mode:           models.CampaignModeLive,
		DailySendLimit: limit,
		Subject:        "Hello {first_name}",
		BodyTemplate:   "Hi {first_name}, quick question about {company}.",
	}
	if mb != nil {
		c.MailboxID = &mb.ID
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func createLead(t *testing.T, db *gorm.DB, campaignID uint, email string, score float64, status string) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		CampaignID: campaignID,
		Email:      email,
		FirstName:  "Ada",
		Company:    "Example Co",
		Score:      score,
		Status:     status,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

// mockSender records delivered mail and can be told to fail.
type mockSender struct {
	mu   sync.Mutex
	sent []OutboundEmail
	err  error
}

func (m *mockSender) Send(_ context.Context, email OutboundEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *mockSender) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// mockReader hands out a fixed batch of messages and records the
// high-water marks it was called with.
type mockReader struct {
	messages []RawMessage
	err      error
	sinces   []time.Time
}

func (m *mockReader) FetchNewSince(_ context.Context, _ *models.Mailbox, since time.Time) ([]RawMessage, error) {
	m.sinces = append(m.sinces, since)
	if m.err != nil {
		return nil, m.err
	}
	return m.messages, nil
}

// mockAlertChannel counts notifications and can be told to fail.
type mockAlertChannel struct {
	notified int
	err      error
}

func (m *mockAlertChannel) Notify(_ context.Context, _, _ string, _ map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.notified++
	return nil
}

// stubBuilder sidesteps template requirements in dispatcher tests.
type stubBuilder struct{}

func (stubBuilder) Build(campaign *models.Campaign, lead *models.Lead) (string, string, error) {
	return "Hello " + lead.FirstName, "body for " + lead.Email, nil
}
