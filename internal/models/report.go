package models

import "time"

// StudentReport is the audit record of one dispatched performance report.
// Rows are written only after the notification email was accepted for
// delivery and are immutable thereafter.
type StudentReport struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Category        *string   `gorm:"size:128" json:"category"`
	SentAt          time.Time `json:"sent_at"`
	SentBy          *uint     `json:"sent_by"`
	EmailSent       string    `gorm:"size:128" json:"email_sent"`
	ArchiveURL      string    `gorm:"size:512" json:"archive_url"`
	SubmissionCount int       `gorm:"not null" json:"submission_count"`
	MarkedCount     int       `gorm:"not null" json:"marked_count"`
}
