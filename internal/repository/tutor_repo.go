package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// AssignmentFilter narrows tutor assignment queries.
type AssignmentFilter struct {
	UserID  *uint
	TutorID *uint
}

// TutorRepository manages tutor roles and student-to-tutor assignments.
type TutorRepository interface {
	GrantRole(ctx context.Context, tutor *models.MarkingTutor) error
	RevokeRole(ctx context.Context, userID uint) error
	ListTutors(ctx context.Context) ([]models.MarkingTutor, error)
	IsTutor(ctx context.Context, userID uint) (bool, error)
	CreateAssignment(ctx context.Context, assignment *models.TutorAssignment) error
	DeleteAssignment(ctx context.Context, userID, tutorID uint) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]models.TutorAssignment, error)
	IsAssigned(ctx context.Context, userID, tutorID uint) (bool, error)
}

type tutorRepository struct {
	db *gorm.DB
}

// NewTutorRepository constructs a tutor repository.
func NewTutorRepository(db *gorm.DB) TutorRepository {
	return &tutorRepository{db: db}
}

func (r *tutorRepository) GrantRole(ctx context.Context, tutor *models.MarkingTutor) error {
	return r.db.WithContext(ctx).Create(tutor).Error
}

func (r *tutorRepository) RevokeRole(ctx context.Context, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.MarkingTutor{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *tutorRepository) ListTutors(ctx context.Context) ([]models.MarkingTutor, error) {
	var tutors []models.MarkingTutor
	if err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at ASC").
		Find(&tutors).Error; err != nil {
		return nil, err
	}

	return tutors, nil
}

func (r *tutorRepository) IsTutor(ctx context.Context, userID uint) (bool, error) {
	var tutor models.MarkingTutor
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&tutor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (r *tutorRepository) CreateAssignment(ctx context.Context, assignment *models.TutorAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *tutorRepository) DeleteAssignment(ctx context.Context, userID, tutorID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("tutor_id = ?", tutorID).
		Delete(&models.TutorAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *tutorRepository) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]models.TutorAssignment, error) {
	query := r.db.WithContext(ctx).
		Model(&models.TutorAssignment{}).
		Preload("User").
		Preload("Tutor")

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.TutorID != nil {
		query = query.Where("tutor_id = ?", *filter.TutorID)
	}

	var assignments []models.TutorAssignment
	if err := query.Order("id ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *tutorRepository) IsAssigned(ctx context.Context, userID, tutorID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TutorAssignment{}).
		Where("user_id = ?", userID).
		Where("tutor_id = ?", tutorID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
