package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// SubmissionRepository provides access to host platform raw submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListWithoutMarking(ctx context.Context) ([]models.Submission, error)
	ListUserIDsByCategory(ctx context.Context, category string) ([]uint, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Challenge").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// ListWithoutMarking returns raw submissions that have no marking overlay
// yet, used by the sync operation to create overlays for direct submissions.
func (r *submissionRepository) ListWithoutMarking(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Joins("LEFT JOIN marking_submissions ON marking_submissions.submission_id = submissions.id").
		Where("marking_submissions.id IS NULL").
		Order("submissions.id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListUserIDsByCategory(ctx context.Context, category string) ([]uint, error) {
	var userIDs []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Joins("JOIN challenges ON challenges.id = submissions.challenge_id").
		Where("challenges.category = ?", category).
		Distinct().
		Pluck("submissions.user_id", &userIDs).Error; err != nil {
		return nil, err
	}

	return userIDs, nil
}
