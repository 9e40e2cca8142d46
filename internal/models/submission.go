package models

import "time"

// Submission mirrors the host platform's raw submissions table. The marking
// hub reads these and inserts new rows when the delegated submission
// endpoint accepts a flag on behalf of a student.
type Submission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ChallengeID uint      `gorm:"not null;index" json:"challenge_id"`
	IP          string    `gorm:"size:46" json:"ip"`
	Provided    string    `gorm:"type:text" json:"provided"`
	Type        string    `gorm:"size:32;not null" json:"type"`
	Date        time.Time `json:"date"`
	User        User      `json:"user"`
	Challenge   Challenge `json:"challenge"`
}

const (
	// SubmissionTypeCorrect marks a submission accepted by flag evaluation.
	SubmissionTypeCorrect = "correct"
	// SubmissionTypeIncorrect marks a rejected submission.
	SubmissionTypeIncorrect = "incorrect"
)

// DelegatedSubmissionIP tags submissions inserted by the delegated
// submission protocol, which have no real network origin.
const DelegatedSubmissionIP = "127.0.0.1"
