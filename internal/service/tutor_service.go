package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
)

// ErrTutorExists indicates the user already holds the tutor role.
var ErrTutorExists = errors.New("user is already a tutor")

// ErrTutorNotFound indicates no tutor role exists for the user.
var ErrTutorNotFound = errors.New("tutor not found")

// ErrNotATutor indicates the assignment target lacks the tutor role.
var ErrNotATutor = errors.New("user does not hold the tutor role")

// ErrAssignmentExists indicates the student is already assigned to this tutor.
var ErrAssignmentExists = errors.New("assignment already exists")

// ErrAssignmentNotFound indicates no such student-to-tutor assignment exists.
var ErrAssignmentNotFound = errors.New("assignment not found")

// TutorService administers tutor roles and student-to-tutor assignments.
type TutorService interface {
	Grant(ctx context.Context, actor ActivityActor, payload dto.TutorGrantRequest) (dto.TutorResponse, error)
	Revoke(ctx context.Context, actor ActivityActor, userID uint) error
	List(ctx context.Context) ([]dto.TutorResponse, error)
	Assign(ctx context.Context, actor ActivityActor, payload dto.AssignmentRequest) (dto.AssignmentResponse, error)
	Unassign(ctx context.Context, actor ActivityActor, payload dto.AssignmentRequest) error
	ListAssignments(ctx context.Context, filter repository.AssignmentFilter) ([]dto.AssignmentResponse, error)
}

type tutorService struct {
	tutors    repository.TutorRepository
	users     repository.UserRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTutorService constructs the tutor administration service.
func NewTutorService(
	tutors repository.TutorRepository,
	users repository.UserRepository,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) TutorService {
	return &tutorService{
		tutors:    tutors,
		users:     users,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "tutor_service").Logger(),
		now:       time.Now,
	}
}

func (s *tutorService) Grant(ctx context.Context, actor ActivityActor, payload dto.TutorGrantRequest) (dto.TutorResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TutorResponse{}, err
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TutorResponse{}, ErrStudentNotFound
		}
		return dto.TutorResponse{}, err
	}

	exists, err := s.tutors.IsTutor(ctx, payload.UserID)
	if err != nil {
		return dto.TutorResponse{}, err
	}
	if exists {
		return dto.TutorResponse{}, ErrTutorExists
	}

	tutor := models.MarkingTutor{UserID: payload.UserID}
	if err := s.tutors.GrantRole(ctx, &tutor); err != nil {
		return dto.TutorResponse{}, err
	}
	tutor.User = user

	s.recordActivity(ctx, actor, "tutor.grant", "marking_tutor", &tutor.ID, map[string]interface{}{
		"user_id": payload.UserID,
	})

	s.logger.Info().Uint("user_id", payload.UserID).Msg("tutor role granted")

	return dto.NewTutorResponse(tutor), nil
}

// Revoke removes the tutor role. Existing assignments to the user stay in
// place so they can be rewired or cleaned up explicitly.
func (s *tutorService) Revoke(ctx context.Context, actor ActivityActor, userID uint) error {
	if err := s.tutors.RevokeRole(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTutorNotFound
		}
		return err
	}

	s.recordActivity(ctx, actor, "tutor.revoke", "marking_tutor", nil, map[string]interface{}{
		"user_id": userID,
	})

	s.logger.Info().Uint("user_id", userID).Msg("tutor role revoked")

	return nil
}

func (s *tutorService) List(ctx context.Context) ([]dto.TutorResponse, error) {
	tutors, err := s.tutors.ListTutors(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewTutorResponseSlice(tutors), nil
}

func (s *tutorService) Assign(ctx context.Context, actor ActivityActor, payload dto.AssignmentRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	student, err := s.users.GetByID(ctx, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrStudentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	isTutor, err := s.tutors.IsTutor(ctx, payload.TutorID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !isTutor {
		return dto.AssignmentResponse{}, ErrNotATutor
	}

	assigned, err := s.tutors.IsAssigned(ctx, payload.StudentID, payload.TutorID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if assigned {
		return dto.AssignmentResponse{}, ErrAssignmentExists
	}

	tutorUser, err := s.users.GetByID(ctx, payload.TutorID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	assignment := models.TutorAssignment{
		UserID:     payload.StudentID,
		TutorID:    payload.TutorID,
		AssignedAt: &now,
	}
	if err := s.tutors.CreateAssignment(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.User = student
	assignment.Tutor = tutorUser

	s.recordActivity(ctx, actor, "tutor.assign", "tutor_assignment", &assignment.ID, map[string]interface{}{
		"student_id": payload.StudentID,
		"tutor_id":   payload.TutorID,
	})

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *tutorService) Unassign(ctx context.Context, actor ActivityActor, payload dto.AssignmentRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	if err := s.tutors.DeleteAssignment(ctx, payload.StudentID, payload.TutorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.recordActivity(ctx, actor, "tutor.unassign", "tutor_assignment", nil, map[string]interface{}{
		"student_id": payload.StudentID,
		"tutor_id":   payload.TutorID,
	})

	return nil
}

func (s *tutorService) ListAssignments(ctx context.Context, filter repository.AssignmentFilter) ([]dto.AssignmentResponse, error) {
	assignments, err := s.tutors.ListAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *tutorService) recordActivity(ctx context.Context, actor ActivityActor, action, entityType string, entityID *uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
	})
}
