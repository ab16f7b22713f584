package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"outreachd/models"
	"outreachd/worker"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers outreach messages over the mailbox's SMTP endpoint.
// It implements worker.EmailSender.
type SMTPSender struct {
	encryptionKey []byte
}

func NewSMTPSender(encryptionKey []byte) *SMTPSender {
	return &SMTPSender{encryptionKey: encryptionKey}
}

// Send delivers one message, honoring the context deadline. gomail has no
// context support, so the dial-and-send runs in a goroutine and the caller
// wins on timeout.
func (s *SMTPSender) Send(ctx context.Context, email worker.OutboundEmail) error {
	if email.Mailbox == nil {
		return fmt.Errorf("no mailbox configured")
	}

	dialer, err := s.dialer(email.Mailbox)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", email.Mailbox.FromEmail, email.Mailbox.FromName)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.MessageID != "" {
		m.SetHeader("Message-ID", email.MessageID)
	}
	m.SetBody("text/plain", email.Body)

	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send timed out: %w", ctx.Err())
	}
}

func (s *SMTPSender) dialer(mb *models.Mailbox) (*gomail.Dialer, error) {
	password, err := Decrypt(s.encryptionKey, mb.SMTPPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	d := gomail.NewDialer(mb.SMTPHost, mb.SMTPPort, mb.SMTPUsername, password)
	switch strings.ToUpper(mb.SMTPEncryption) {
	case "SSL", "TLS":
		d.SSL = true
		d.TLSConfig = &tls.Config{ServerName: mb.SMTPHost}
	case "STARTTLS":
		d.TLSConfig = &tls.Config{ServerName: mb.SMTPHost}
	}
	return d, nil
}
