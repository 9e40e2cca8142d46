package models

import "time"

// MarkingDeadline stores one grading due-date per challenge.
type MarkingDeadline struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"uniqueIndex;not null" json:"challenge_id"`
	DueDate     time.Time `gorm:"not null" json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	Challenge   Challenge `gorm:"constraint:OnDelete:CASCADE" json:"challenge"`
}

// IsPastDue returns true when the marking deadline has already passed.
func (d MarkingDeadline) IsPastDue(reference time.Time) bool {
	return reference.After(d.DueDate)
}
