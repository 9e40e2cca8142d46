package models

import "time"

// SubmissionToken is a single-use credential that lets the external
// autograder submit a flag on behalf of a student. The raw token is never
// stored; only the HMAC binding it to the (student, challenge) pair is.
// Tokens are kept after redemption for audit.
type SubmissionToken struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	ChallengeID uint       `gorm:"not null;index" json:"challenge_id"`
	TokenHash   string     `gorm:"size:64;uniqueIndex;not null" json:"token_hash"`
	CreatedBy   *uint      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	Used        bool       `gorm:"not null;default:false" json:"used"`
	UsedAt      *time.Time `json:"used_at"`
}

// IsExpired reports whether the token can no longer be redeemed due to age.
func (t SubmissionToken) IsExpired(reference time.Time) bool {
	return !reference.Before(t.ExpiresAt)
}
