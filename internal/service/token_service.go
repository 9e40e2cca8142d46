package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
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

// ErrStudentNotFound indicates the referenced student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrChallengeNotFound indicates the referenced challenge does not exist.
var ErrChallengeNotFound = errors.New("challenge not found")

// ErrTokenNotFound indicates no token matches the presented hash.
var ErrTokenNotFound = errors.New("token not found")

// ErrHashMismatch indicates the claimed hash does not verify against the
// presented raw token, i.e. a forged or tampered request.
var ErrHashMismatch = errors.New("token hash mismatch")

// ErrTokenReplayed indicates the token was already redeemed.
var ErrTokenReplayed = errors.New("token already used")

// ErrTokenExpired indicates the token's redemption window has passed.
var ErrTokenExpired = errors.New("token expired")

// ErrEmptyFlag indicates the submitted flag is empty after trimming.
var ErrEmptyFlag = errors.New("flag must not be empty")

// TokenService implements the delegated submission protocol: issuing
// single-use HMAC-bound tokens and redeeming them as submissions.
type TokenService interface {
	Issue(ctx context.Context, payload dto.TokenIssueRequest, createdBy *uint) (dto.TokenIssueResponse, error)
	Redeem(ctx context.Context, payload dto.TokenRedeemRequest) (dto.TokenRedeemResponse, error)
}

type tokenService struct {
	tokens     repository.TokenRepository
	users      repository.UserRepository
	challenges repository.ChallengeRepository
	secret     string
	defaultTTL time.Duration
	events     EventPublisher
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewTokenService constructs the delegated submission token service.
func NewTokenService(
	tokens repository.TokenRepository,
	users repository.UserRepository,
	challenges repository.ChallengeRepository,
	secret string,
	defaultTTL time.Duration,
	events EventPublisher,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) TokenService {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}

	return &tokenService{
		tokens:     tokens,
		users:      users,
		challenges: challenges,
		secret:     secret,
		defaultTTL: defaultTTL,
		events:     events,
		activity:   activity,
		validator:  validate,
		logger:     logger.With().Str("component", "token_service").Logger(),
		now:        time.Now,
	}
}

// ComputeTokenHash binds a raw token to a (student, challenge) pair via
// HMAC-SHA256 keyed with the shared autograder secret.
func ComputeTokenHash(secret string, studentID, challengeID uint, rawToken string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%d:%s", studentID, challengeID, rawToken)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *tokenService) Issue(ctx context.Context, payload dto.TokenIssueRequest, createdBy *uint) (dto.TokenIssueResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenIssueResponse{}, err
	}

	if _, err := s.users.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenIssueResponse{}, ErrStudentNotFound
		}
		return dto.TokenIssueResponse{}, err
	}

	if _, err := s.challenges.GetByID(ctx, payload.ChallengeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenIssueResponse{}, ErrChallengeNotFound
		}
		return dto.TokenIssueResponse{}, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return dto.TokenIssueResponse{}, fmt.Errorf("failed to generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	ttl := s.defaultTTL
	if payload.ExpiresInHours != nil {
		ttl = time.Duration(*payload.ExpiresInHours) * time.Hour
	}

	now := s.now()
	token := models.SubmissionToken{
		UserID:      payload.StudentID,
		ChallengeID: payload.ChallengeID,
		TokenHash:   ComputeTokenHash(s.secret, payload.StudentID, payload.ChallengeID, rawToken),
		CreatedBy:   createdBy,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := s.tokens.Create(ctx, &token); err != nil {
		return dto.TokenIssueResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    deref(createdBy),
			ActorRole:  "autograder",
			Action:     "token.issued",
			EntityType: "submission_token",
			EntityID:   &token.ID,
			Metadata: map[string]interface{}{
				"student_id":   payload.StudentID,
				"challenge_id": payload.ChallengeID,
				"expires_at":   token.ExpiresAt,
			},
		})
	}

	s.logger.Info().
		Uint("student_id", payload.StudentID).
		Uint("challenge_id", payload.ChallengeID).
		Time("expires_at", token.ExpiresAt).
		Msg("delegated submission token issued")

	return dto.TokenIssueResponse{
		RawToken:  rawToken,
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Redeem walks the gate chain in order; the first violated precondition
// rejects the request before any mutation. Submission insert, marking
// overlay and token consumption commit as one transaction.
func (s *tokenService) Redeem(ctx context.Context, payload dto.TokenRedeemRequest) (dto.TokenRedeemResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/marking-hub-api/internal/service/token")
	ctx, span := tracer.Start(ctx, "token.redeem")
	span.SetAttributes(
		attribute.Int64("token.student_id", int64(payload.StudentID)),
		attribute.Int64("token.challenge_id", int64(payload.ChallengeID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.TokenRedeemResponse{}, err
	}

	flag := strings.TrimSpace(payload.Flag)
	if flag == "" {
		return dto.TokenRedeemResponse{}, ErrEmptyFlag
	}

	expected := ComputeTokenHash(s.secret, payload.StudentID, payload.ChallengeID, payload.RawToken)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(payload.ClaimedHash))) != 1 {
		span.SetStatus(codes.Error, "hash_mismatch")
		return dto.TokenRedeemResponse{}, ErrHashMismatch
	}

	token, err := s.tokens.FindByHash(ctx, payload.StudentID, payload.ChallengeID, expected)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "token_not_found")
			return dto.TokenRedeemResponse{}, ErrTokenNotFound
		}
		span.RecordError(err)
		return dto.TokenRedeemResponse{}, err
	}

	if token.Used {
		span.SetStatus(codes.Error, "token_replayed")
		return dto.TokenRedeemResponse{}, ErrTokenReplayed
	}

	now := s.now()
	if token.IsExpired(now) {
		span.SetStatus(codes.Error, "token_expired")
		return dto.TokenRedeemResponse{}, ErrTokenExpired
	}

	challenge, err := s.challenges.GetByID(ctx, payload.ChallengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenRedeemResponse{}, ErrChallengeNotFound
		}
		span.RecordError(err)
		return dto.TokenRedeemResponse{}, err
	}

	correct := matchFlag(flag, challenge.Answers)

	var autoMark *int
	if challenge.IsTechnical() {
		mark := 0
		if correct {
			mark = challenge.MaxValue()
		}
		autoMark = &mark
	}

	submissionID, err := s.tokens.ApplyRedemption(ctx, repository.RedemptionParams{
		TokenID:     token.ID,
		UserID:      payload.StudentID,
		ChallengeID: payload.ChallengeID,
		Provided:    flag,
		Correct:     correct,
		AutoMark:    autoMark,
		Now:         now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			span.SetStatus(codes.Error, "token_replayed")
			return dto.TokenRedeemResponse{}, ErrTokenReplayed
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "redemption_apply_failed")
		return dto.TokenRedeemResponse{}, err
	}

	s.publishRedeemed(payload.StudentID, payload.ChallengeID, submissionID, correct)

	span.SetAttributes(
		attribute.Bool("token.correct", correct),
		attribute.Int64("token.submission_id", int64(submissionID)),
	)
	s.logger.Info().
		Uint("student_id", payload.StudentID).
		Uint("challenge_id", payload.ChallengeID).
		Uint("submission_id", submissionID).
		Bool("correct", correct).
		Msg("delegated submission recorded")

	return dto.TokenRedeemResponse{Correct: correct, SubmissionID: submissionID}, nil
}

// matchFlag evaluates the trimmed flag against accepted answers in host
// order. Regex answers full-match; invalid patterns are skipped. Static
// answers compare case-insensitively after trimming.
func matchFlag(flag string, answers []models.ChallengeAnswer) bool {
	for _, answer := range answers {
		switch answer.Kind {
		case models.AnswerKindRegex:
			re, err := regexp.Compile("^(?:" + answer.Content + ")$")
			if err != nil {
				continue
			}
			if re.MatchString(flag) {
				return true
			}
		default:
			if strings.EqualFold(strings.TrimSpace(answer.Content), flag) {
				return true
			}
		}
	}

	return false
}

func (s *tokenService) publishRedeemed(studentID, challengeID, submissionID uint, correct bool) {
	if s.events == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"student_id":    studentID,
		"challenge_id":  challengeID,
		"submission_id": submissionID,
		"correct":       correct,
	})
	if err != nil {
		return
	}

	if err := s.events.Publish(EventSubjectDelegatedSubmission, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish delegated submission event")
	}
}

func deref(id *uint) uint {
	if id == nil {
		return 0
	}

	return *id
}
