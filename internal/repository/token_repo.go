package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
)

// ErrTokenConsumed indicates a concurrent redemption won the compare-and-swap
// on the token's used flag.
var ErrTokenConsumed = errors.New("token already consumed")

// RedemptionParams carries everything the atomic redemption apply needs once
// the gate checks have passed.
type RedemptionParams struct {
	TokenID     uint
	UserID      uint
	ChallengeID uint
	Provided    string
	Correct     bool
	AutoMark    *int
	Now         time.Time
}

// TokenRepository persists delegated submission tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *models.SubmissionToken) error
	FindByHash(ctx context.Context, userID, challengeID uint, tokenHash string) (models.SubmissionToken, error)
	ApplyRedemption(ctx context.Context, params RedemptionParams) (uint, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository constructs a token repository.
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *models.SubmissionToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *tokenRepository) FindByHash(ctx context.Context, userID, challengeID uint, tokenHash string) (models.SubmissionToken, error) {
	var token models.SubmissionToken
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("challenge_id = ?", challengeID).
		Where("token_hash = ?", tokenHash).
		First(&token).Error; err != nil {
		return models.SubmissionToken{}, err
	}

	return token, nil
}

// ApplyRedemption records the delegated submission, its marking overlay and
// the token consumption as one transaction. The token update is a guarded
// compare-and-swap on used=false so two concurrent redemptions of the same
// token cannot both commit; the loser rolls back with ErrTokenConsumed and
// no submission or marking row survives.
func (r *tokenRepository) ApplyRedemption(ctx context.Context, params RedemptionParams) (uint, error) {
	var submissionID uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submissionType := models.SubmissionTypeIncorrect
		if params.Correct {
			submissionType = models.SubmissionTypeCorrect
		}

		submission := models.Submission{
			UserID:      params.UserID,
			ChallengeID: params.ChallengeID,
			IP:          models.DelegatedSubmissionIP,
			Provided:    params.Provided,
			Type:        submissionType,
			Date:        params.Now,
		}
		if err := tx.Create(&submission).Error; err != nil {
			return err
		}

		marking := models.MarkingSubmission{
			SubmissionID: submission.ID,
		}
		if params.AutoMark != nil {
			mark := *params.AutoMark
			markedAt := params.Now
			marking.Mark = &mark
			marking.MarkedAt = &markedAt
		}
		if err := tx.Create(&marking).Error; err != nil {
			return err
		}

		result := tx.Model(&models.SubmissionToken{}).
			Where("id = ?", params.TokenID).
			Where("used = ?", false).
			Updates(map[string]interface{}{
				"used":    true,
				"used_at": params.Now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenConsumed
		}

		submissionID = submission.ID

		return nil
	})
	if err != nil {
		return 0, err
	}

	return submissionID, nil
}
