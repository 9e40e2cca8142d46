package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
)

type stubActivityRecorder struct {
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	s.entries = append(s.entries, entry)
	return dto.ActivityResponse{Action: entry.Action, EntityType: entry.EntityType}, nil
}

type capturingPublisher struct {
	subjects []string
}

func (p *capturingPublisher) Publish(subject string, _ []byte) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.ChallengeAnswer{},
		&models.Submission{},
		&models.MarkingSubmission{},
		&models.MarkingTutor{},
		&models.TutorAssignment{},
		&models.MarkingDeadline{},
		&models.SubmissionToken{},
		&models.StudentReport{},
	))

	return db
}

func setupTokenService(t *testing.T) (*gorm.DB, TokenService, *capturingPublisher) {
	t.Helper()

	db := openTestDB(t, "token_service")
	require.NoError(t, db.Create(&models.User{ID: 1, Name: "Alice Chen", Email: "z1234567@unsw.test"}).Error)
	require.NoError(t, db.Create(&models.Challenge{ID: 10, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	require.NoError(t, db.Create(&models.ChallengeAnswer{ChallengeID: 10, Kind: models.AnswerKindStatic, Content: "CTF{hello}"}).Error)

	publisher := &capturingPublisher{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewTokenService(
		repository.NewTokenRepository(db),
		repository.NewUserRepository(db),
		repository.NewChallengeRepository(db),
		"autograder-secret",
		24*time.Hour,
		publisher,
		&stubActivityRecorder{},
		validate,
		testLogger(),
	)

	return db, svc, publisher
}

func issueToken(t *testing.T, svc TokenService, studentID, challengeID uint) dto.TokenIssueResponse {
	t.Helper()

	issued, err := svc.Issue(context.Background(), dto.TokenIssueRequest{
		StudentID:   studentID,
		ChallengeID: challengeID,
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, issued.RawToken)
	require.Len(t, issued.TokenHash, 64)

	return issued
}

func TestTokenServiceIssueAndRedeem(t *testing.T) {
	db, svc, publisher := setupTokenService(t)

	issued := issueToken(t, svc, 1, 10)
	require.Equal(t, ComputeTokenHash("autograder-secret", 1, 10, issued.RawToken), issued.TokenHash)

	result, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "CTF{hello}",
	})
	require.NoError(t, err)
	require.True(t, result.Correct)
	require.NotZero(t, result.SubmissionID)

	var submission models.Submission
	require.NoError(t, db.First(&submission, result.SubmissionID).Error)
	require.Equal(t, models.SubmissionTypeCorrect, submission.Type)
	require.Equal(t, models.DelegatedSubmissionIP, submission.IP)
	require.Equal(t, "CTF{hello}", submission.Provided)

	var marking models.MarkingSubmission
	require.NoError(t, db.Where("submission_id = ?", result.SubmissionID).First(&marking).Error)
	require.Nil(t, marking.Mark)

	var token models.SubmissionToken
	require.NoError(t, db.Where("token_hash = ?", issued.TokenHash).First(&token).Error)
	require.True(t, token.Used)
	require.NotNil(t, token.UsedAt)

	require.Equal(t, []string{EventSubjectDelegatedSubmission}, publisher.subjects)
}

func TestTokenServiceRedeemReplayRejected(t *testing.T) {
	db, svc, _ := setupTokenService(t)

	issued := issueToken(t, svc, 1, 10)
	payload := dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "wrong answer",
	}

	_, err := svc.Redeem(context.Background(), payload)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), payload)
	require.ErrorIs(t, err, ErrTokenReplayed)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestTokenServiceRedeemExpired(t *testing.T) {
	_, svc, _ := setupTokenService(t)

	issued := issueToken(t, svc, 1, 10)

	concrete := svc.(*tokenService)
	concrete.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	_, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "CTF{hello}",
	})
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenServiceRedeemTamperedHashLeavesNoTrace(t *testing.T) {
	db, svc, _ := setupTokenService(t)

	issued := issueToken(t, svc, 1, 10)

	tampered := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	_, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		RawToken:    issued.RawToken,
		ClaimedHash: tampered,
		Flag:        "CTF{hello}",
	})
	require.ErrorIs(t, err, ErrHashMismatch)

	var submissions int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&submissions).Error)
	require.Zero(t, submissions)

	var token models.SubmissionToken
	require.NoError(t, db.Where("token_hash = ?", issued.TokenHash).First(&token).Error)
	require.False(t, token.Used)
}

func TestTokenServiceRedeemStaticMatchIsForgiving(t *testing.T) {
	_, svc, _ := setupTokenService(t)

	issued := issueToken(t, svc, 1, 10)

	result, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "  ctf{HELLO}  ",
	})
	require.NoError(t, err)
	require.True(t, result.Correct)
}

func TestTokenServiceRedeemRegexAnswer(t *testing.T) {
	db, svc, _ := setupTokenService(t)

	require.NoError(t, db.Create(&models.Challenge{ID: 11, Name: "Crypto 1", Category: "crypto"}).Error)
	require.NoError(t, db.Create(&models.ChallengeAnswer{ChallengeID: 11, Kind: models.AnswerKindRegex, Content: `CTF\{[0-9]+\}`}).Error)

	issued := issueToken(t, svc, 1, 11)

	result, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 11,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "CTF{42}",
	})
	require.NoError(t, err)
	require.True(t, result.Correct)

	// A partial match must not count: the pattern is anchored.
	issued = issueToken(t, svc, 1, 11)
	result, err = svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 11,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "prefix CTF{42} suffix",
	})
	require.NoError(t, err)
	require.False(t, result.Correct)
}

func TestTokenServiceRedeemTechnicalAutogrades(t *testing.T) {
	db, svc, _ := setupTokenService(t)

	require.NoError(t, db.Create(&models.Challenge{ID: 12, Name: "TECH: Port Scan", Category: "recon", Value: 60}).Error)
	require.NoError(t, db.Create(&models.ChallengeAnswer{ChallengeID: 12, Kind: models.AnswerKindStatic, Content: "CTF{scan}"}).Error)

	issued := issueToken(t, svc, 1, 12)
	result, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 12,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "CTF{scan}",
	})
	require.NoError(t, err)
	require.True(t, result.Correct)

	var marking models.MarkingSubmission
	require.NoError(t, db.Where("submission_id = ?", result.SubmissionID).First(&marking).Error)
	require.NotNil(t, marking.Mark)
	require.Equal(t, 60, *marking.Mark)
	require.NotNil(t, marking.MarkedAt)

	// An incorrect technical answer autogrades to zero.
	issued = issueToken(t, svc, 1, 12)
	result, err = svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 12,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "CTF{nope}",
	})
	require.NoError(t, err)
	require.False(t, result.Correct)

	marking = models.MarkingSubmission{}
	require.NoError(t, db.Where("submission_id = ?", result.SubmissionID).First(&marking).Error)
	require.NotNil(t, marking.Mark)
	require.Zero(t, *marking.Mark)
}

func TestTokenServiceRedeemEmptyFlag(t *testing.T) {
	_, svc, _ := setupTokenService(t)

	issued := issueToken(t, svc, 1, 10)
	_, err := svc.Redeem(context.Background(), dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		RawToken:    issued.RawToken,
		ClaimedHash: issued.TokenHash,
		Flag:        "   ",
	})
	require.ErrorIs(t, err, ErrEmptyFlag)
}

func TestTokenServiceIssueUnknownReferences(t *testing.T) {
	_, svc, _ := setupTokenService(t)

	_, err := svc.Issue(context.Background(), dto.TokenIssueRequest{StudentID: 99, ChallengeID: 10}, nil)
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = svc.Issue(context.Background(), dto.TokenIssueRequest{StudentID: 1, ChallengeID: 99}, nil)
	require.ErrorIs(t, err, ErrChallengeNotFound)
}
