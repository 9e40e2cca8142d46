package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
)

// ErrInvalidDueDate indicates the due date could not be parsed as RFC 3339.
var ErrInvalidDueDate = errors.New("due date must be RFC 3339")

// ErrDeadlineNotFound indicates no deadline exists for the challenge.
var ErrDeadlineNotFound = errors.New("deadline not found")

// DeadlineService manages per-challenge marking deadlines.
type DeadlineService interface {
	Upsert(ctx context.Context, actor ActivityActor, challengeID uint, payload dto.DeadlineUpsertRequest) (dto.DeadlineResponse, error)
	Get(ctx context.Context, challengeID uint) (dto.DeadlineResponse, error)
	List(ctx context.Context) ([]dto.DeadlineResponse, error)
}

type deadlineService struct {
	deadlines  repository.DeadlineRepository
	challenges repository.ChallengeRepository
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewDeadlineService constructs the deadline service.
func NewDeadlineService(
	deadlines repository.DeadlineRepository,
	challenges repository.ChallengeRepository,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) DeadlineService {
	return &deadlineService{
		deadlines:  deadlines,
		challenges: challenges,
		activity:   activity,
		validator:  validate,
		logger:     logger.With().Str("component", "deadline_service").Logger(),
	}
}

// Upsert sets or replaces the deadline for one challenge.
func (s *deadlineService) Upsert(ctx context.Context, actor ActivityActor, challengeID uint, payload dto.DeadlineUpsertRequest) (dto.DeadlineResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DeadlineResponse{}, err
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return dto.DeadlineResponse{}, fmt.Errorf("%w: %v", ErrInvalidDueDate, err)
	}

	challenge, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DeadlineResponse{}, ErrChallengeNotFound
		}
		return dto.DeadlineResponse{}, err
	}

	deadline := models.MarkingDeadline{
		ChallengeID: challengeID,
		DueDate:     dueDate,
	}
	if err := s.deadlines.Upsert(ctx, &deadline); err != nil {
		return dto.DeadlineResponse{}, err
	}
	deadline.Challenge = challenge

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "deadline.upsert",
			EntityType: "marking_deadline",
			EntityID:   &deadline.ID,
			Metadata: map[string]interface{}{
				"challenge_id": challengeID,
				"due_date":     dueDate.Format(time.RFC3339),
			},
		})
	}

	s.logger.Info().
		Uint("challenge_id", challengeID).
		Time("due_date", dueDate).
		Msg("marking deadline set")

	return dto.NewDeadlineResponse(deadline), nil
}

func (s *deadlineService) Get(ctx context.Context, challengeID uint) (dto.DeadlineResponse, error) {
	deadline, err := s.deadlines.GetByChallengeID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DeadlineResponse{}, ErrDeadlineNotFound
		}
		return dto.DeadlineResponse{}, err
	}

	return dto.NewDeadlineResponse(deadline), nil
}

func (s *deadlineService) List(ctx context.Context) ([]dto.DeadlineResponse, error) {
	deadlines, err := s.deadlines.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewDeadlineResponseSlice(deadlines), nil
}
