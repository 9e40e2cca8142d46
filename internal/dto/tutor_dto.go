package dto

import (
	"time"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// TutorGrantRequest grants the tutor role to a host user.
type TutorGrantRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0"`
}

// AssignmentRequest creates or removes a student-to-tutor assignment.
type AssignmentRequest struct {
	StudentID uint `json:"student_id" validate:"required,gt=0"`
	TutorID   uint `json:"tutor_id" validate:"required,gt=0"`
}

// TutorResponse serializes a tutor role record.
type TutorResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentResponse serializes a student-to-tutor assignment.
type AssignmentResponse struct {
	ID          uint       `json:"id"`
	StudentID   uint       `json:"student_id"`
	TutorID     uint       `json:"tutor_id"`
	StudentName string     `json:"student_name"`
	TutorName   string     `json:"tutor_name"`
	AssignedAt  *time.Time `json:"assigned_at"`
}

// NewTutorResponse converts a MarkingTutor model into a DTO.
func NewTutorResponse(model models.MarkingTutor) TutorResponse {
	return TutorResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Name:      model.User.Name,
		Email:     model.User.Email,
		CreatedAt: model.CreatedAt,
	}
}

// NewTutorResponseSlice converts tutor models into DTOs.
func NewTutorResponseSlice(tutors []models.MarkingTutor) []TutorResponse {
	responses := make([]TutorResponse, 0, len(tutors))
	for _, tutor := range tutors {
		responses = append(responses, NewTutorResponse(tutor))
	}

	return responses
}

// NewAssignmentResponse converts a TutorAssignment model into a DTO.
func NewAssignmentResponse(model models.TutorAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          model.ID,
		StudentID:   model.UserID,
		TutorID:     model.TutorID,
		StudentName: model.User.Name,
		TutorName:   model.Tutor.Name,
		AssignedAt:  model.AssignedAt,
	}
}

// NewAssignmentResponseSlice converts assignment models into DTOs.
func NewAssignmentResponseSlice(assignments []models.TutorAssignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
