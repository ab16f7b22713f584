package engine

import (
	"errors"
	"time"

	"outreachd/models"
)

// Send-eligibility failures. These are expected control-flow conditions for
// the dispatcher, not faults.
var (
	ErrQuotaExceeded       = errors.New("daily send quota exceeded")
	ErrCampaignInactive    = errors.New("campaign is not active")
	ErrNoChannelConfigured = errors.New("no send channel configured for campaign")
)

// RemainingQuota returns how many sends the campaign has left today given
// the number of quota-consuming attempts (sent or simulated) already
// recorded for the current day.
func RemainingQuota(campaign *models.Campaign, usedToday int) int {
	return campaign.DailySendLimit - usedToday
}

// CanSend checks every precondition for dispatching one more message on
// the campaign. Quota rollover is purely date-based; usedToday must be
// counted inside the window returned by QuotaDay.
func CanSend(campaign *models.Campaign, usedToday int) error {
	if !campaign.Active {
		return ErrCampaignInactive
	}
	if !campaign.HasSendChannel() {
		return ErrNoChannelConfigured
	}
	if RemainingQuota(campaign, usedToday) <= 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// QuotaDay returns the calendar-day window containing now in the given
// timezone. The quota resets at midnight with no explicit reset job: the
// window simply moves. The end is the next local midnight, not start plus
// 24 hours: DST transitions make some calendar days 23 or 25 hours long.
func QuotaDay(now time.Time, loc *time.Location) (start, end time.Time) {
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}
