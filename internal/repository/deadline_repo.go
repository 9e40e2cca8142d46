package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// DeadlineRepository manages per-challenge marking deadlines.
type DeadlineRepository interface {
	Upsert(ctx context.Context, deadline *models.MarkingDeadline) error
	GetByChallengeID(ctx context.Context, challengeID uint) (models.MarkingDeadline, error)
	List(ctx context.Context) ([]models.MarkingDeadline, error)
}

type deadlineRepository struct {
	db *gorm.DB
}

// NewDeadlineRepository constructs a deadline repository.
func NewDeadlineRepository(db *gorm.DB) DeadlineRepository {
	return &deadlineRepository{db: db}
}

// Upsert creates the deadline for a challenge or replaces its due date,
// keeping the one-deadline-per-challenge invariant.
func (r *deadlineRepository) Upsert(ctx context.Context, deadline *models.MarkingDeadline) error {
	var existing models.MarkingDeadline
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", deadline.ChallengeID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(deadline).Error
		}
		return err
	}

	existing.DueDate = deadline.DueDate
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}

	*deadline = existing

	return nil
}

func (r *deadlineRepository) GetByChallengeID(ctx context.Context, challengeID uint) (models.MarkingDeadline, error) {
	var deadline models.MarkingDeadline
	if err := r.db.WithContext(ctx).
		Preload("Challenge").
		Where("challenge_id = ?", challengeID).
		First(&deadline).Error; err != nil {
		return models.MarkingDeadline{}, err
	}

	return deadline, nil
}

func (r *deadlineRepository) List(ctx context.Context) ([]models.MarkingDeadline, error) {
	var deadlines []models.MarkingDeadline
	if err := r.db.WithContext(ctx).
		Preload("Challenge").
		Order("due_date ASC").
		Find(&deadlines).Error; err != nil {
		return nil, err
	}

	return deadlines, nil
}
