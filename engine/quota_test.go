package engine

import (
	"testing"
	"time"

	"outreachd/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotaCampaign(limit int, active bool) *models.Campaign {
	mailboxID := uint(1)
	return &models.Campaign{
		Active:         active,
		DailySendLimit: limit,
		MailboxID:      &mailboxID,
	}
}

func TestRemainingQuota(t *testing.T) {
	c := quotaCampaign(5, true)
	assert.Equal(t, 5, RemainingQuota(c, 0))
	assert.Equal(t, 1, RemainingQuota(c, 4))
	assert.Equal(t, 0, RemainingQuota(c, 5))
	assert.Equal(t, -1, RemainingQuota(c, 6))
}

func TestCanSend(t *testing.T) {
	assert.NoError(t, CanSend(quotaCampaign(5, true), 4))
	assert.ErrorIs(t, CanSend(quotaCampaign(5, true), 5), ErrQuotaExceeded)
	assert.ErrorIs(t, CanSend(quotaCampaign(5, false), 0), ErrCampaignInactive)

	noChannel := quotaCampaign(5, true)
	noChannel.MailboxID = nil
	assert.ErrorIs(t, CanSend(noChannel, 0), ErrNoChannelConfigured)

	// Inactive wins over quota: the campaign is not sendable at all.
	assert.ErrorIs(t, CanSend(quotaCampaign(5, false), 5), ErrCampaignInactive)
}

func TestQuotaDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:30 UTC on June 2 is still June 1 in New York.
	now := time.Date(2025, 6, 2, 3, 30, 0, 0, time.UTC)
	start, end := QuotaDay(now, loc)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, loc), end)
	assert.True(t, !now.Before(start) && now.Before(end))
}

func TestQuotaDaySpansDSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Fall-back day: 25 hours long. The window must still reach the next
	// local midnight so a late-evening attempt counts against this day.
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, loc)
	start, end := QuotaDay(now, loc)
	assert.Equal(t, time.Date(2025, 11, 2, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, loc), end)
	assert.Equal(t, 25*time.Hour, end.Sub(start))

	lateAttempt := time.Date(2025, 11, 2, 23, 30, 0, 0, loc)
	assert.True(t, lateAttempt.Before(end))

	// Spring-forward day: 23 hours long, and the window must not bleed
	// into the next day.
	now = time.Date(2025, 3, 9, 12, 0, 0, 0, loc)
	start, end = QuotaDay(now, loc)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, loc), end)
	assert.Equal(t, 23*time.Hour, end.Sub(start))

	nextDay := time.Date(2025, 3, 10, 0, 30, 0, 0, loc)
	assert.False(t, nextDay.Before(end))
}
