package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// ChallengeRepository provides read access to host platform challenges.
type ChallengeRepository interface {
	GetByID(ctx context.Context, id uint) (models.Challenge, error)
	ListByCategory(ctx context.Context, category string) ([]models.Challenge, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository constructs a challenge repository.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) GetByID(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).Preload("Answers").First(&challenge, id).Error; err != nil {
		return models.Challenge{}, err
	}

	return challenge, nil
}

func (r *challengeRepository) ListByCategory(ctx context.Context, category string) ([]models.Challenge, error) {
	var challenges []models.Challenge
	if err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("id ASC").
		Find(&challenges).Error; err != nil {
		return nil, err
	}

	return challenges, nil
}

func (r *challengeRepository) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).
		Model(&models.Challenge{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}

	sort.Strings(categories)

	return categories, nil
}
