package models

import "time"

// MarkingSubmission is the grading overlay attached to exactly one raw host
// submission. A null Mark means the submission has not been reviewed yet.
type MarkingSubmission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SubmissionID uint       `gorm:"uniqueIndex;not null" json:"submission_id"`
	Mark         *int       `json:"mark"`
	Comment      string     `gorm:"type:text" json:"comment"`
	MarkedAt     *time.Time `json:"marked_at"`
	MarkedBy     *uint      `json:"marked_by"`
	Submission   Submission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submission"`
}

// PlaceholderComment is written on zero-mark rows synthesized for work a
// student never submitted.
const PlaceholderComment = "Auto-generated 0 for missing submission"

// IsMarked reports whether a tutor (or the autograder) has set a mark.
func (m MarkingSubmission) IsMarked() bool {
	return m.Mark != nil
}
