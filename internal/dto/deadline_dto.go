package dto

import (
	"time"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// DeadlineUpsertRequest sets the marking deadline for one challenge. The due
// date must be RFC 3339.
type DeadlineUpsertRequest struct {
	DueDate string `json:"due_date" validate:"required"`
}

// DeadlineResponse serializes a marking deadline.
type DeadlineResponse struct {
	ID          uint      `json:"id"`
	ChallengeID uint      `json:"challenge_id"`
	Challenge   string    `json:"challenge"`
	Category    string    `json:"category"`
	DueDate     time.Time `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDeadlineResponse converts a MarkingDeadline model into a DTO.
func NewDeadlineResponse(model models.MarkingDeadline) DeadlineResponse {
	return DeadlineResponse{
		ID:          model.ID,
		ChallengeID: model.ChallengeID,
		Challenge:   model.Challenge.Name,
		Category:    model.Challenge.Category,
		DueDate:     model.DueDate,
		CreatedAt:   model.CreatedAt,
	}
}

// NewDeadlineResponseSlice converts deadline models into DTOs.
func NewDeadlineResponseSlice(deadlines []models.MarkingDeadline) []DeadlineResponse {
	responses := make([]DeadlineResponse, 0, len(deadlines))
	for _, deadline := range deadlines {
		responses = append(responses, NewDeadlineResponse(deadline))
	}

	return responses
}
