package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gomail.v2"
)

// AlertMailerConfig describes the SMTP endpoint human alerts go out on.
// Alerts use a dedicated operator-facing account, not campaign mailboxes.
type AlertMailerConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromEmail  string
	FromName   string
	Recipients []string
}

// AlertMailer delivers human notifications by email. It implements
// worker.AlertChannel.
type AlertMailer struct {
	cfg AlertMailerConfig
}

func NewAlertMailer(cfg AlertMailerConfig) *AlertMailer {
	return &AlertMailer{cfg: cfg}
}

func (am *AlertMailer) Notify(ctx context.Context, title, body string, metadata map[string]string) error {
	if len(am.cfg.Recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", am.cfg.FromEmail, am.cfg.FromName)
	m.SetHeader("To", am.cfg.Recipients...)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", body+metadataFooter(metadata))

	d := gomail.NewDialer(am.cfg.Host, am.cfg.Port, am.cfg.Username, am.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: am.cfg.Host}

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("alert send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("alert send timed out: %w", ctx.Err())
	}
}

func metadataFooter(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n\n--\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, metadata[k])
	}
	return b.String()
}
