// Package engine holds the pure decision logic of the outreach worker:
// lead status transitions, follow-up scheduling, quota arithmetic, reply
// classification and campaign pause decisions. Nothing in this package
// performs I/O, so every function is deterministic for a given input.
package engine

import (
	"time"

	"outreachd/models"
)

// Terminal reports whether a status receives no further automated
// follow-up.
func Terminal(status string) bool {
	switch status {
	case models.LeadStatusReplied, models.LeadStatusQualified, models.LeadStatusLost:
		return true
	}
	return false
}

// AfterEnrichment computes the status of a lead once enrichment data is
// present. Only brand-new leads move; everything else keeps its status.
func AfterEnrichment(lead *models.Lead) string {
	if lead.Status == models.LeadStatusNew {
		return models.LeadStatusEnriched
	}
	return lead.Status
}

// AfterAttempt computes the status of a lead after an outreach attempt.
// Only delivered (or simulated) attempts move the lead; failed sends keep
// the current status so the lead stays in the due window.
func AfterAttempt(lead *models.Lead, delivered bool) string {
	if !delivered {
		return lead.Status
	}
	switch lead.Status {
	case models.LeadStatusNew, models.LeadStatusEnriched, models.LeadStatusContacted:
		return models.LeadStatusContacted
	}
	return lead.Status
}

// AfterReply computes the status of a lead after an inbound reply has been
// classified. Unknown-category replies never transition: an ambiguous
// message must not route a lead into qualified or lost. Replies to leads
// already in a terminal state are persisted by the caller but do not
// transition either.
func AfterReply(lead *models.Lead, category string) string {
	if Terminal(lead.Status) {
		return lead.Status
	}
	if lead.Status != models.LeadStatusContacted {
		return lead.Status
	}
	switch category {
	case models.ReplyCategoryUnknown:
		return lead.Status
	case models.ReplyCategoryPositive:
		return models.LeadStatusQualified
	}
	if lead.Score > 0.7 || lead.HasTag(models.TagHot) {
		return models.LeadStatusQualified
	}
	return models.LeadStatusReplied
}

// StopFollowUp is the stop predicate evaluated before scheduling further
// attempts: terminal status, an explicit do-not-contact marker, or the
// follow-up window elapsed since the last contact with no reply.
func StopFollowUp(lead *models.Lead, now time.Time, cutoff time.Duration) bool {
	if Terminal(lead.Status) {
		return true
	}
	if lead.IsDoNotContact || lead.HasTag(models.TagDoNotContact) {
		return true
	}
	if lead.LastContactedAt != nil && now.Sub(*lead.LastContactedAt) >= cutoff {
		return true
	}
	return false
}

// NextActionAt schedules the next attempt: higher-scored leads get shorter
// delays, down to an immediate retry at score 1.0.
func NextActionAt(now time.Time, score float64, baseDelay time.Duration) time.Time {
	return now.Add(time.Duration(float64(baseDelay) * (1 - clamp01(score))))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
