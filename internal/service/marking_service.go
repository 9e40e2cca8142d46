package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
)

// ErrMarkingNotFound indicates the marking submission does not exist.
var ErrMarkingNotFound = errors.New("marking submission not found")

// ErrNotPermitted indicates the actor may not grade this submission.
var ErrNotPermitted = errors.New("submission is not assigned to this tutor")

// MarkingService manages the grading overlay: syncing raw submissions into
// gradable entries, listing them with tutor visibility applied, and
// recording grades.
type MarkingService interface {
	Sync(ctx context.Context, actor ActivityActor) (dto.SyncResponse, error)
	List(ctx context.Context, actor ActivityActor, filter dto.MarkingListFilter) ([]dto.MarkingResponse, error)
	Get(ctx context.Context, actor ActivityActor, id uint) (dto.MarkingResponse, error)
	Grade(ctx context.Context, actor ActivityActor, id uint, payload dto.GradeRequest) (dto.MarkingResponse, error)
}

type markingService struct {
	markings    repository.MarkingRepository
	submissions repository.SubmissionRepository
	tutors      repository.TutorRepository
	cache       *ReportCache
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewMarkingService constructs the marking overlay service.
func NewMarkingService(
	markings repository.MarkingRepository,
	submissions repository.SubmissionRepository,
	tutors repository.TutorRepository,
	cache *ReportCache,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) MarkingService {
	return &markingService{
		markings:    markings,
		submissions: submissions,
		tutors:      tutors,
		cache:       cache,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "marking_service").Logger(),
		now:         time.Now,
	}
}

// Sync creates an unmarked overlay entry for every raw submission that does
// not have one yet. Running it twice in a row is a no-op on the second run.
func (s *markingService) Sync(ctx context.Context, actor ActivityActor) (dto.SyncResponse, error) {
	orphans, err := s.submissions.ListWithoutMarking(ctx)
	if err != nil {
		return dto.SyncResponse{}, err
	}

	markings := make([]models.MarkingSubmission, 0, len(orphans))
	for _, submission := range orphans {
		markings = append(markings, models.MarkingSubmission{SubmissionID: submission.ID})
	}

	if err := s.markings.CreateBatch(ctx, markings); err != nil {
		return dto.SyncResponse{}, err
	}

	if len(markings) > 0 {
		s.logger.Info().Int("created", len(markings)).Msg("marking entries synced")
	}

	s.recordActivity(ctx, actor, "marking.sync", "marking_submission", nil, map[string]interface{}{
		"created": len(markings),
	})

	return dto.SyncResponse{Created: len(markings)}, nil
}

func (s *markingService) List(ctx context.Context, actor ActivityActor, filter dto.MarkingListFilter) ([]dto.MarkingResponse, error) {
	repoFilter := repository.MarkingFilter{
		UserID:      filter.StudentID,
		ChallengeID: filter.ChallengeID,
		Category:    filter.Category,
		Marked:      filter.Marked,
	}

	// Non-admin tutors only see submissions from their assigned students.
	if actor.Role != models.RoleAdmin {
		tutorID := actor.ID
		repoFilter.VisibleToTutorID = &tutorID
	}

	markings, err := s.markings.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewMarkingResponseSlice(markings), nil
}

func (s *markingService) Get(ctx context.Context, actor ActivityActor, id uint) (dto.MarkingResponse, error) {
	marking, err := s.markings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MarkingResponse{}, ErrMarkingNotFound
		}
		return dto.MarkingResponse{}, err
	}

	if err := s.checkVisibility(ctx, actor, marking.Submission.UserID); err != nil {
		return dto.MarkingResponse{}, err
	}

	return dto.NewMarkingResponse(marking), nil
}

// Grade records or updates the mark and feedback on a marking submission,
// stamping who graded it and when. Regrading overwrites the previous mark.
func (s *markingService) Grade(ctx context.Context, actor ActivityActor, id uint, payload dto.GradeRequest) (dto.MarkingResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/marking-hub-api/internal/service/marking")
	ctx, span := tracer.Start(ctx, "marking.grade")
	span.SetAttributes(attribute.Int64("marking.id", int64(id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.MarkingResponse{}, err
	}

	marking, err := s.markings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "not_found")
			return dto.MarkingResponse{}, ErrMarkingNotFound
		}
		span.RecordError(err)
		return dto.MarkingResponse{}, err
	}

	if err := s.checkVisibility(ctx, actor, marking.Submission.UserID); err != nil {
		span.SetStatus(codes.Error, "not_permitted")
		return dto.MarkingResponse{}, err
	}

	now := s.now()
	markedBy := actor.ID

	marking.Mark = payload.Mark
	marking.MarkedAt = &now
	marking.MarkedBy = &markedBy
	if payload.Comment != nil {
		marking.Comment = *payload.Comment
	}

	if err := s.markings.Update(ctx, &marking); err != nil {
		span.RecordError(err)
		return dto.MarkingResponse{}, err
	}

	// Cached report PDFs for this student are stale now.
	s.cache.Invalidate(ctx, marking.Submission.UserID, marking.Submission.Challenge.Category)

	s.recordActivity(ctx, actor, "marking.grade", "marking_submission", &marking.ID, map[string]interface{}{
		"student_id":   marking.Submission.UserID,
		"challenge_id": marking.Submission.ChallengeID,
		"mark":         *payload.Mark,
	})

	s.logger.Info().
		Uint("marking_id", marking.ID).
		Uint("graded_by", actor.ID).
		Int("mark", *payload.Mark).
		Msg("submission graded")

	return dto.NewMarkingResponse(marking), nil
}

func (s *markingService) checkVisibility(ctx context.Context, actor ActivityActor, studentID uint) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}

	assigned, err := s.tutors.IsAssigned(ctx, studentID, actor.ID)
	if err != nil {
		return err
	}
	if !assigned {
		return ErrNotPermitted
	}

	return nil
}

func (s *markingService) recordActivity(ctx context.Context, actor ActivityActor, action, entityType string, entityID *uint, metadata map[string]interface{}) {
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
