package engine

import (
	"strings"

	"outreachd/models"
)

// classificationRule maps a lexicon to a reply category. Rules are checked
// in order and the first phrase hit wins, so the negative lexicon shields
// "not interested" from the positive "interested".
type classificationRule struct {
	category string
	phrases  []string
}

var classificationRules = []classificationRule{
	{
		category: models.ReplyCategoryOutOfOffice,
		phrases: []string{
			"out of office",
			"out of the office",
			"on vacation",
			"on annual leave",
			"on holiday until",
			"maternity leave",
			"paternity leave",
			"away from my desk",
			"back in the office",
			"currently travelling",
		},
	},
	{
		category: models.ReplyCategoryAutoReply,
		phrases: []string{
			"do not reply",
			"do-not-reply",
			"automatic reply",
			"automated response",
			"auto-reply",
			"autoreply",
			"this mailbox is not monitored",
			"this is an automated message",
			"delivery status notification",
			"your message has been received",
		},
	},
	{
		category: models.ReplyCategoryNegative,
		phrases: []string{
			"not interested",
			"no thanks",
			"no, thanks",
			"remove me",
			"please remove",
			"unsubscribe",
			"stop emailing",
			"stop contacting",
			"don't contact",
			"do not contact",
			"not a good fit",
			"not relevant",
		},
	},
	{
		category: models.ReplyCategoryPositive,
		phrases: []string{
			"interested",
			"sounds good",
			"sounds great",
			"tell me more",
			"let's talk",
			"lets talk",
			"let's chat",
			"happy to chat",
			"schedule a call",
			"book a meeting",
			"send me more",
			"works for me",
		},
	},
}

// ClassifyReply assigns a category to an inbound message using the fixed
// ordered rule set. Auto-responder headers short-circuit to auto_reply;
// a message with no text at all cannot be classified and stays unknown so
// it never triggers a state transition.
func ClassifyReply(subject, body string, autoSubmitted bool) string {
	if autoSubmitted {
		return models.ReplyCategoryAutoReply
	}

	text := strings.ToLower(strings.TrimSpace(subject + "\n" + body))
	if text == "" {
		return models.ReplyCategoryUnknown
	}

	for _, rule := range classificationRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(text, phrase) {
				return rule.category
			}
		}
	}
	return models.ReplyCategoryNeutral
}
