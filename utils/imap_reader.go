package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"outreachd/models"
	"outreachd/worker"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// IMAPReader polls a mailbox's IMAP endpoint for new messages. It
// implements worker.MailboxReader.
type IMAPReader struct {
	encryptionKey []byte
}

func NewIMAPReader(encryptionKey []byte) *IMAPReader {
	return &IMAPReader{encryptionKey: encryptionKey}
}

// FetchNewSince returns the messages received after the high-water mark.
// IMAP SINCE only has day granularity, so the envelope date is re-checked
// here; the caller additionally de-duplicates by Message-ID.
func (r *IMAPReader) FetchNewSince(ctx context.Context, mb *models.Mailbox, since time.Time) ([]worker.RawMessage, error) {
	imapClient, err := r.connect(mb)
	if err != nil {
		return nil, err
	}
	defer imapClient.Logout()

	folder := "INBOX"
	if mb.IMAPFolder != "" {
		folder = mb.IMAPFolder
	}
	if _, err := imapClient.Select(folder, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", folder, err)
	}

	criteria := imap.NewSearchCriteria()
	if !since.IsZero() {
		criteria.Since = since
	}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var out []worker.RawMessage
	for msg := range messages {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		raw, err := r.toRawMessage(msg, section)
		if err != nil {
			continue // unparseable message, leave it behind
		}
		if !since.IsZero() && !raw.ReceivedAt.After(since) {
			continue
		}
		out = append(out, raw)
	}

	if err := <-done; err != nil {
		return out, fmt.Errorf("error during fetch: %w", err)
	}
	return out, nil
}

func (r *IMAPReader) connect(mb *models.Mailbox) (*client.Client, error) {
	password, err := Decrypt(r.encryptionKey, mb.IMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", mb.IMAPHost, mb.IMAPPort)
	var imapClient *client.Client

	switch strings.ToUpper(mb.IMAPEncryption) {
	case "SSL", "TLS":
		imapClient, err = client.DialTLS(addr, &tls.Config{ServerName: mb.IMAPHost})
	case "STARTTLS":
		imapClient, err = client.Dial(addr)
		if err == nil {
			err = imapClient.StartTLS(&tls.Config{ServerName: mb.IMAPHost})
		}
	default:
		imapClient, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := imapClient.Login(mb.IMAPUsername, password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	return imapClient, nil
}

func (r *IMAPReader) toRawMessage(msg *imap.Message, section *imap.BodySectionName) (worker.RawMessage, error) {
	raw := worker.RawMessage{}
	if msg.Envelope == nil {
		return raw, fmt.Errorf("message %d has no envelope", msg.SeqNum)
	}

	raw.MessageID = msg.Envelope.MessageId
	raw.ThreadID = msg.Envelope.InReplyTo
	raw.Subject = msg.Envelope.Subject
	raw.ReceivedAt = msg.Envelope.Date
	if len(msg.Envelope.From) > 0 {
		raw.Sender = msg.Envelope.From[0].Address()
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return raw, nil // envelope-only message, body stays empty
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return raw, fmt.Errorf("failed to create message reader: %w", err)
	}

	if auto := mr.Header.Get("Auto-Submitted"); auto != "" && !strings.EqualFold(auto, "no") {
		raw.AutoSubmitted = true
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return raw, fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if strings.Contains(contentType, "text/plain") && raw.Body == "" {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return raw, fmt.Errorf("failed to read body: %w", err)
				}
				raw.Body = string(b)
			}
		}
	}
	return raw, nil
}
