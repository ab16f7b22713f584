package models

import (
	"time"

	"gorm.io/gorm"
)

// Mailbox is a configured SMTP/IMAP endpoint the worker sends from and
// polls replies on. Passwords are stored encrypted (AES, see
// utils/encryption.go) and decrypted only inside the adapters.
type Mailbox struct {
	gorm.Model
	Name      string `gorm:"not null" json:"name"`
	FromEmail string `gorm:"not null" json:"from_email"`
	FromName  string `json:"from_name"`

	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `json:"smtp_port"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"-"` // encrypted at rest
	SMTPEncryption string `json:"smtp_encryption"` // SSL, TLS, STARTTLS, NONE

	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"-"` // encrypted at rest
	IMAPEncryption string `json:"imap_encryption"`
	IMAPFolder     string `json:"imap_folder"` // defaults to INBOX

	IsActive   bool       `gorm:"default:true;index" json:"is_active"`
	LastError  string     `json:"last_error"`
	LastUsedAt *time.Time `json:"last_used_at"`
}
