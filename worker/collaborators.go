package worker

import (
	"context"
	"time"

	"outreachd/models"
)

// OutboundEmail is one message handed to the send collaborator.
type OutboundEmail struct {
	Mailbox   *models.Mailbox
	To        string
	Subject   string
	Body      string
	MessageID string
}

// EmailSender delivers one message. Implementations must respect the
// context deadline so an unresponsive SMTP server cannot stall the cycle.
type EmailSender interface {
	Send(ctx context.Context, email OutboundEmail) error
}

// RawMessage is an inbound message as exposed by the mailbox collaborator.
type RawMessage struct {
	Sender        string
	Subject       string
	Body          string
	MessageID     string
	ThreadID      string // In-Reply-To / References head
	AutoSubmitted bool   // Auto-Submitted header present
	ReceivedAt    time.Time
}

// MailboxReader pulls messages received after the given high-water mark.
type MailboxReader interface {
	FetchNewSince(ctx context.Context, mailbox *models.Mailbox, since time.Time) ([]RawMessage, error)
}

// AlertChannel delivers a human notification. It is invoked at most once
// per idempotency key per cycle; delivery failures are retried next cycle.
type AlertChannel interface {
	Notify(ctx context.Context, title, body string, metadata map[string]string) error
}

// MessageBuilder produces the personalized subject and body for one lead.
// Content generation lives outside the worker; the default implementation
// is a plain token-replacement template.
type MessageBuilder interface {
	Build(campaign *models.Campaign, lead *models.Lead) (subject, body string, err error)
}
