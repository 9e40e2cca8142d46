package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// MarkingFilter narrows marking submission queries.
type MarkingFilter struct {
	UserID           *uint
	ChallengeID      *uint
	Category         string
	Marked           *bool
	VisibleToTutorID *uint
}

// MarkingRepository defines data operations for the grading overlay.
type MarkingRepository interface {
	List(ctx context.Context, filter MarkingFilter) ([]models.MarkingSubmission, error)
	GetByID(ctx context.Context, id uint) (models.MarkingSubmission, error)
	GetBySubmissionID(ctx context.Context, submissionID uint) (models.MarkingSubmission, error)
	Update(ctx context.Context, marking *models.MarkingSubmission) error
	CreateBatch(ctx context.Context, markings []models.MarkingSubmission) error
	ListForReport(ctx context.Context, userID uint, category string) ([]models.MarkingSubmission, error)
	EnsureZeroForCategory(ctx context.Context, userID uint, category string, now time.Time) (int, error)
	ListMarkedUserIDs(ctx context.Context, category string) ([]uint, error)
}

type markingRepository struct {
	db *gorm.DB
}

// NewMarkingRepository instantiates the repository.
func NewMarkingRepository(db *gorm.DB) MarkingRepository {
	return &markingRepository{db: db}
}

func (r *markingRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.MarkingSubmission{}).
		Preload("Submission").
		Preload("Submission.User").
		Preload("Submission.Challenge")
}

func (r *markingRepository) List(ctx context.Context, filter MarkingFilter) ([]models.MarkingSubmission, error) {
	query := r.baseQuery(ctx).
		Joins("JOIN submissions ON submissions.id = marking_submissions.submission_id")

	if filter.UserID != nil {
		query = query.Where("submissions.user_id = ?", *filter.UserID)
	}

	if filter.ChallengeID != nil {
		query = query.Where("submissions.challenge_id = ?", *filter.ChallengeID)
	}

	if filter.Category != "" {
		query = query.
			Joins("JOIN challenges ON challenges.id = submissions.challenge_id").
			Where("challenges.category = ?", filter.Category)
	}

	if filter.Marked != nil {
		if *filter.Marked {
			query = query.Where("marking_submissions.mark IS NOT NULL")
		} else {
			query = query.Where("marking_submissions.mark IS NULL")
		}
	}

	if filter.VisibleToTutorID != nil {
		query = query.
			Joins("JOIN tutor_assignments ON tutor_assignments.user_id = submissions.user_id").
			Where("tutor_assignments.tutor_id = ?", *filter.VisibleToTutorID)
	}

	var markings []models.MarkingSubmission
	if err := query.Order("marking_submissions.id ASC").Find(&markings).Error; err != nil {
		return nil, err
	}

	return markings, nil
}

func (r *markingRepository) GetByID(ctx context.Context, id uint) (models.MarkingSubmission, error) {
	var marking models.MarkingSubmission
	if err := r.baseQuery(ctx).First(&marking, id).Error; err != nil {
		return models.MarkingSubmission{}, err
	}

	return marking, nil
}

func (r *markingRepository) GetBySubmissionID(ctx context.Context, submissionID uint) (models.MarkingSubmission, error) {
	var marking models.MarkingSubmission
	if err := r.baseQuery(ctx).
		Where("marking_submissions.submission_id = ?", submissionID).
		First(&marking).Error; err != nil {
		return models.MarkingSubmission{}, err
	}

	return marking, nil
}

func (r *markingRepository) Update(ctx context.Context, marking *models.MarkingSubmission) error {
	return r.db.WithContext(ctx).Save(marking).Error
}

func (r *markingRepository) CreateBatch(ctx context.Context, markings []models.MarkingSubmission) error {
	if len(markings) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(&markings).Error
}

func (r *markingRepository) ListForReport(ctx context.Context, userID uint, category string) ([]models.MarkingSubmission, error) {
	query := r.baseQuery(ctx).
		Joins("JOIN submissions ON submissions.id = marking_submissions.submission_id").
		Where("submissions.user_id = ?", userID)

	if category != "" {
		query = query.
			Joins("JOIN challenges ON challenges.id = submissions.challenge_id").
			Where("challenges.category = ?", category)
	}

	var markings []models.MarkingSubmission
	if err := query.Find(&markings).Error; err != nil {
		return nil, err
	}

	return markings, nil
}

// EnsureZeroForCategory inserts a zero-mark placeholder (with its backing
// empty raw submission) for every challenge in the category the student has
// no marking entry for. The whole pass commits as one transaction. It is
// idempotent per (student, challenge) and returns the number of placeholders
// inserted.
func (r *markingRepository) EnsureZeroForCategory(ctx context.Context, userID uint, category string, now time.Time) (int, error) {
	inserted := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var challenges []models.Challenge
		if err := tx.Where("category = ?", category).Find(&challenges).Error; err != nil {
			return err
		}

		for _, challenge := range challenges {
			var count int64
			if err := tx.Model(&models.MarkingSubmission{}).
				Joins("JOIN submissions ON submissions.id = marking_submissions.submission_id").
				Where("submissions.user_id = ?", userID).
				Where("submissions.challenge_id = ?", challenge.ID).
				Count(&count).Error; err != nil {
				return err
			}

			if count > 0 {
				continue
			}

			placeholder := models.Submission{
				UserID:      userID,
				ChallengeID: challenge.ID,
				Provided:    "",
				Type:        models.SubmissionTypeIncorrect,
				Date:        now,
			}
			if err := tx.Create(&placeholder).Error; err != nil {
				return err
			}

			zero := 0
			marking := models.MarkingSubmission{
				SubmissionID: placeholder.ID,
				Mark:         &zero,
				Comment:      models.PlaceholderComment,
				MarkedAt:     &now,
			}
			if err := tx.Create(&marking).Error; err != nil {
				return err
			}

			inserted++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func (r *markingRepository) ListMarkedUserIDs(ctx context.Context, category string) ([]uint, error) {
	query := r.db.WithContext(ctx).
		Model(&models.MarkingSubmission{}).
		Joins("JOIN submissions ON submissions.id = marking_submissions.submission_id").
		Where("marking_submissions.mark IS NOT NULL")

	if category != "" {
		query = query.
			Joins("JOIN challenges ON challenges.id = submissions.challenge_id").
			Where("challenges.category = ?", category)
	}

	var userIDs []uint
	if err := query.Distinct().Pluck("submissions.user_id", &userIDs).Error; err != nil {
		return nil, err
	}

	return userIDs, nil
}
