package dto

import "time"

// TokenIssueRequest asks for a delegated submission token scoped to one
// (student, challenge) pair.
type TokenIssueRequest struct {
	StudentID      uint `json:"student_id" validate:"required,gt=0"`
	ChallengeID    uint `json:"challenge_id" validate:"required,gt=0"`
	ExpiresInHours *int `json:"expires_in_hours" validate:"omitempty,gt=0,lte=336"`
}

// TokenIssueResponse returns the raw token and its binding hash. Both must be
// presented on redemption; the raw token is never stored server-side.
type TokenIssueResponse struct {
	RawToken  string    `json:"raw_token"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenRedeemRequest submits a flag on behalf of a student using a
// previously issued token.
type TokenRedeemRequest struct {
	StudentID   uint   `json:"student_id" validate:"required,gt=0"`
	ChallengeID uint   `json:"challenge_id" validate:"required,gt=0"`
	Flag        string `json:"flag" validate:"required"`
	RawToken    string `json:"raw_token" validate:"required"`
	ClaimedHash string `json:"claimed_hash" validate:"required,len=64,hexadecimal"`
}

// TokenRedeemResponse reports the verdict of a delegated submission.
type TokenRedeemResponse struct {
	Correct      bool `json:"correct"`
	SubmissionID uint `json:"submission_id"`
}
