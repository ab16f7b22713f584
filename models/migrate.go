package models

import "gorm.io/gorm"

// MigrateDB creates or updates the schema for every table the worker owns.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&Campaign{},
		&Mailbox{},
		&Lead{},
		&LeadTag{},
		&OutreachAttempt{},
		&InboundReply{},
		&MailboxCursor{},
		&WorkerHeartbeat{},
		&HumanAlertLog{},
	)
}
