package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// GradeRequest sets or updates the mark on one marking submission.
type GradeRequest struct {
	Mark    *int    `json:"mark" validate:"required,gte=0,lte=100"`
	Comment *string `json:"comment" validate:"omitempty"`
}

// MarkingListFilter describes query string filters for listing markings.
type MarkingListFilter struct {
	StudentID   *uint  `query:"student_id"`
	ChallengeID *uint  `query:"challenge_id"`
	Category    string `query:"category"`
	Marked      *bool  `query:"marked"`
}

// MarkingResponse is returned to tutors viewing gradable submissions.
type MarkingResponse struct {
	ID           uint       `json:"id"`
	SubmissionID uint       `json:"submission_id"`
	StudentID    uint       `json:"student_id"`
	ChallengeID  uint       `json:"challenge_id"`
	StudentName  string     `json:"student_name"`
	StudentZID   string     `json:"student_zid"`
	Challenge    string     `json:"challenge"`
	Category     string     `json:"category"`
	SubmittedAt  string     `json:"submitted_at"`
	Flag         string     `json:"flag"`
	Mark         *int       `json:"mark"`
	Comment      string     `json:"comment"`
	MarkedAt     *time.Time `json:"marked_at"`
	MarkedBy     *uint      `json:"marked_by"`
	Technical    bool       `json:"technical"`
}

// SyncResponse summarizes a marking sync pass.
type SyncResponse struct {
	Created int `json:"created"`
}

// NewMarkingResponse converts a MarkingSubmission model into a DTO.
func NewMarkingResponse(model models.MarkingSubmission) MarkingResponse {
	sub := model.Submission
	challenge := sub.Challenge

	submittedAt := "N/A"
	if !sub.Date.IsZero() {
		submittedAt = sub.Date.Format("2006-01-02 15:04:05")
	}

	return MarkingResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		StudentID:    sub.UserID,
		ChallengeID:  sub.ChallengeID,
		StudentName:  sub.User.Name,
		StudentZID:   zidFromEmail(sub.User.Email),
		Challenge:    challenge.Name,
		Category:     challenge.Category,
		SubmittedAt:  submittedAt,
		Flag:         sub.Provided,
		Mark:         model.Mark,
		Comment:      model.Comment,
		MarkedAt:     model.MarkedAt,
		MarkedBy:     model.MarkedBy,
		Technical:    challenge.IsTechnical(),
	}
}

// NewMarkingResponseSlice converts marking models into DTOs.
func NewMarkingResponseSlice(markings []models.MarkingSubmission) []MarkingResponse {
	responses := make([]MarkingResponse, 0, len(markings))
	for _, marking := range markings {
		responses = append(responses, NewMarkingResponse(marking))
	}

	return responses
}

func zidFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}

	return "N/A"
}
