package engine

import (
	"testing"
	"time"

	"outreachd/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestComputeMetrics(t *testing.T) {
	campaign := &models.Campaign{TargetQualifiedCount: 10}
	counts := map[string]int{
		models.LeadStatusNew:       3,
		models.LeadStatusContacted: 10,
		models.LeadStatusReplied:   2,
		models.LeadStatusQualified: 4,
		models.LeadStatusLost:      1,
	}

	m := ComputeMetrics(campaign, counts)
	assert.Equal(t, 20, m.Total)
	assert.Equal(t, 4, m.Qualified)
	assert.InDelta(t, 0.2, m.ConversionRate, 1e-9)
	assert.InDelta(t, 0.4, m.GoalProgress, 1e-9)
}

func TestComputeMetricsEmptyCampaign(t *testing.T) {
	m := ComputeMetrics(&models.Campaign{}, map[string]int{})
	assert.Equal(t, 0, m.Total)
	assert.Zero(t, m.ConversionRate)
	assert.Zero(t, m.GoalProgress)
}

func TestShouldPause(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("goal met", func(t *testing.T) {
		c := &models.Campaign{TargetQualifiedCount: 5}
		m := ComputeMetrics(c, map[string]int{models.LeadStatusQualified: 5})
		pause, reason := ShouldPause(c, m, now)
		assert.True(t, pause)
		assert.Equal(t, PauseReasonGoalMet, reason)
	})

	t.Run("loss rate exceeded", func(t *testing.T) {
		c := &models.Campaign{}
		m := ComputeMetrics(c, map[string]int{
			models.LeadStatusQualified: 1,
			models.LeadStatusReplied:   2,
			models.LeadStatusLost:      6,
		})
		// 6 / (1 + 6 + 2 + 1) = 0.6
		pause, reason := ShouldPause(c, m, now)
		assert.True(t, pause)
		assert.Equal(t, PauseReasonLossRateExceeded, reason)
	})

	t.Run("stale with no conversions", func(t *testing.T) {
		c := &models.Campaign{
			Model:      gorm.Model{CreatedAt: now.Add(-91 * 24 * time.Hour)},
			MaxAgeDays: 90,
		}
		m := ComputeMetrics(c, map[string]int{models.LeadStatusContacted: 8})
		pause, reason := ShouldPause(c, m, now)
		assert.True(t, pause)
		assert.Equal(t, PauseReasonStale, reason)
	})

	t.Run("aged campaign with conversions keeps running", func(t *testing.T) {
		c := &models.Campaign{
			Model:      gorm.Model{CreatedAt: now.Add(-91 * 24 * time.Hour)},
			MaxAgeDays: 90,
		}
		m := ComputeMetrics(c, map[string]int{models.LeadStatusQualified: 1})
		pause, _ := ShouldPause(c, m, now)
		assert.False(t, pause)
	})

	t.Run("healthy campaign keeps running", func(t *testing.T) {
		c := &models.Campaign{TargetQualifiedCount: 100, MaxAgeDays: 90, Model: gorm.Model{CreatedAt: now.Add(-24 * time.Hour)}}
		m := ComputeMetrics(c, map[string]int{
			models.LeadStatusContacted: 30,
			models.LeadStatusQualified: 2,
			models.LeadStatusLost:      1,
		})
		pause, reason := ShouldPause(c, m, now)
		assert.False(t, pause)
		assert.Empty(t, reason)
	})
}
