package dto

import (
	"time"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// ReportSendRequest dispatches a single student report.
type ReportSendRequest struct {
	StudentID uint   `json:"student_id" validate:"required,gt=0"`
	Category  string `json:"category" validate:"omitempty,max=128"`
}

// ReportDispatchResult reports the outcome of one dispatch.
type ReportDispatchResult struct {
	Sent       bool   `json:"sent"`
	Message    string `json:"message"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// WeeklyReportRequest dispatches reports for all eligible students.
type WeeklyReportRequest struct {
	Category string `json:"category" validate:"omitempty,max=128"`
}

// WeeklyReportResponse summarizes a batch dispatch.
type WeeklyReportResponse struct {
	Category string   `json:"category,omitempty"`
	Total    int      `json:"total"`
	Sent     int      `json:"sent"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// StudentReportResponse serializes one report audit record.
type StudentReportResponse struct {
	ID              uint      `json:"id"`
	StudentID       uint      `json:"student_id"`
	Category        *string   `json:"category"`
	SentAt          time.Time `json:"sent_at"`
	SentBy          *uint     `json:"sent_by"`
	EmailSent       string    `json:"email_sent"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
	SubmissionCount int       `json:"submission_count"`
	MarkedCount     int       `json:"marked_count"`
}

// NewStudentReportResponse converts a StudentReport model into a DTO.
func NewStudentReportResponse(model models.StudentReport) StudentReportResponse {
	return StudentReportResponse{
		ID:              model.ID,
		StudentID:       model.UserID,
		Category:        model.Category,
		SentAt:          model.SentAt,
		SentBy:          model.SentBy,
		EmailSent:       model.EmailSent,
		ArchiveURL:      model.ArchiveURL,
		SubmissionCount: model.SubmissionCount,
		MarkedCount:     model.MarkedCount,
	}
}

// NewStudentReportResponseSlice converts report models into DTOs.
func NewStudentReportResponseSlice(reports []models.StudentReport) []StudentReportResponse {
	responses := make([]StudentReportResponse, 0, len(reports))
	for _, report := range reports {
		responses = append(responses, NewStudentReportResponse(report))
	}

	return responses
}
