package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
	"github.com/noah-isme/marking-hub-api/pkg/mailer"
	"github.com/noah-isme/marking-hub-api/pkg/reportpdf"
)

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

var _ mailer.Mailer = (*fakeMailer)(nil)

func setupReportService(t *testing.T) (*gorm.DB, ReportService, *fakeMailer) {
	t.Helper()

	db := openTestDB(t, "report_service")
	mail := &fakeMailer{}

	svc := NewReportService(
		repository.NewMarkingRepository(db),
		repository.NewUserRepository(db),
		repository.NewChallengeRepository(db),
		repository.NewSubmissionRepository(db),
		repository.NewReportRepository(db),
		mail,
		reportpdf.NewRenderer("SecSoc CTF", testLogger()),
		NewReportCache(nil, time.Minute, testLogger()),
		nil,
		nil,
		&stubActivityRecorder{},
		"SecSoc CTF",
		"https://ctf.test",
		testLogger(),
	)

	return db, svc, mail
}

func seedStudent(t *testing.T, db *gorm.DB, id uint, name, email string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{ID: id, Name: name, Email: email}).Error)
}

func seedMarkedSubmission(t *testing.T, db *gorm.DB, userID, challengeID uint, mark *int, comment string, submittedAt time.Time) {
	t.Helper()

	submission := models.Submission{
		UserID:      userID,
		ChallengeID: challengeID,
		Provided:    fmt.Sprintf("flag-%d-%d", userID, challengeID),
		Type:        models.SubmissionTypeIncorrect,
		Date:        submittedAt,
	}
	require.NoError(t, db.Create(&submission).Error)

	marking := models.MarkingSubmission{
		SubmissionID: submission.ID,
		Mark:         mark,
		Comment:      comment,
	}
	if mark != nil {
		markedAt := submittedAt.Add(time.Hour)
		marking.MarkedAt = &markedAt
	}
	require.NoError(t, db.Create(&marking).Error)
}

func intPtr(v int) *int { return &v }

func TestReportServiceCollectExcludesUnmarkedManualWork(t *testing.T) {
	db, svc, _ := setupReportService(t)

	seedStudent(t, db, 1, "Alice Chen", "z1234567@unsw.test")
	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	require.NoError(t, db.Create(&models.Challenge{ID: 2, Name: "TECH: Port Scan", Category: "forensics", Value: 50}).Error)
	require.NoError(t, db.Create(&models.Challenge{ID: 3, Name: "Crypto 1", Category: "crypto", Value: 100}).Error)

	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	seedMarkedSubmission(t, db, 1, 1, intPtr(90), "well done", base)
	seedMarkedSubmission(t, db, 1, 2, nil, "", base.Add(time.Minute))
	seedMarkedSubmission(t, db, 1, 3, nil, "", base.Add(2*time.Minute))

	entries, err := svc.Collect(context.Background(), 1, "")
	require.NoError(t, err)

	// The unmarked manual entry is dropped; the unmarked technical one stays.
	require.Len(t, entries, 2)
	require.Equal(t, "Forensics 1", entries[0].Challenge)
	require.Equal(t, "Great", entries[0].MarkName)
	require.Equal(t, "Port Scan", entries[1].Challenge)
	require.True(t, entries[1].Technical)
}

func TestReportServiceDispatchEmailAndAudit(t *testing.T) {
	db, svc, mail := setupReportService(t)

	seedStudent(t, db, 1, "Alice Chen", "z1234567@unsw.test")
	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	require.NoError(t, db.Create(&models.Challenge{ID: 2, Name: "Forensics 2", Category: "forensics", Value: 50}).Error)

	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	seedMarkedSubmission(t, db, 1, 1, intPtr(90), "solid work", base)
	seedMarkedSubmission(t, db, 1, 2, intPtr(20), "partial", base.Add(time.Minute))

	result, err := svc.Dispatch(context.Background(), 1, nil, "")
	require.NoError(t, err)
	require.True(t, result.Sent)

	require.Len(t, mail.sent, 1)
	require.Equal(t, "z1234567@unsw.test", mail.sent[0].to)
	require.Equal(t, "SecSoc CTF - Your Performance Report", mail.sent[0].subject)
	require.Contains(t, mail.sent[0].body, "Hello Alice Chen")
	require.Contains(t, mail.sent[0].body, "Submissions Reviewed: 2")
	// (90+20)/(100+50) = 73.3%
	require.Contains(t, mail.sent[0].body, "Overall Homework Percentage: 73.3%")
	require.Contains(t, mail.sent[0].body, "https://ctf.test/api/marking/reports/my-report")

	var reports []models.StudentReport
	require.NoError(t, db.Find(&reports).Error)
	require.Len(t, reports, 1)
	require.Equal(t, uint(1), reports[0].UserID)
	require.Equal(t, 2, reports[0].SubmissionCount)
	require.Equal(t, 2, reports[0].MarkedCount)
	require.Nil(t, reports[0].Category)
}

func TestReportServiceDispatchCategoryGapFill(t *testing.T) {
	db, svc, mail := setupReportService(t)

	seedStudent(t, db, 1, "Alice Chen", "z1234567@unsw.test")
	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	require.NoError(t, db.Create(&models.Challenge{ID: 2, Name: "Forensics 2", Category: "forensics", Value: 100}).Error)

	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	seedMarkedSubmission(t, db, 1, 1, intPtr(60), "", base)

	_, err := svc.Dispatch(context.Background(), 1, nil, "forensics")
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)

	// The skipped challenge got a zero placeholder.
	var placeholders []models.MarkingSubmission
	require.NoError(t, db.Where("comment = ?", models.PlaceholderComment).Find(&placeholders).Error)
	require.Len(t, placeholders, 1)
	require.NotNil(t, placeholders[0].Mark)
	require.Zero(t, *placeholders[0].Mark)

	// Dispatching again must not add a second placeholder.
	_, err = svc.Dispatch(context.Background(), 1, nil, "forensics")
	require.NoError(t, err)
	require.NoError(t, db.Where("comment = ?", models.PlaceholderComment).Find(&placeholders).Error)
	require.Len(t, placeholders, 1)
}

func TestReportServiceDispatchNothingToReport(t *testing.T) {
	db, svc, mail := setupReportService(t)

	seedStudent(t, db, 1, "Alice Chen", "z1234567@unsw.test")

	_, err := svc.Dispatch(context.Background(), 1, nil, "")
	require.ErrorIs(t, err, ErrNothingToReport)
	require.Empty(t, mail.sent)
}

func TestReportServiceDispatchNoEmailAddress(t *testing.T) {
	db, svc, _ := setupReportService(t)

	seedStudent(t, db, 1, "Alice Chen", "")

	_, err := svc.Dispatch(context.Background(), 1, nil, "")
	require.ErrorIs(t, err, ErrNoContactAddress)
}

func TestReportServiceMailFailureLeavesNoAuditRow(t *testing.T) {
	db, svc, mail := setupReportService(t)
	mail.fail = true

	seedStudent(t, db, 1, "Alice Chen", "z1234567@unsw.test")
	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	seedMarkedSubmission(t, db, 1, 1, intPtr(90), "", time.Now())

	_, err := svc.Dispatch(context.Background(), 1, nil, "")
	require.ErrorIs(t, err, ErrDeliveryFailed)

	var count int64
	require.NoError(t, db.Model(&models.StudentReport{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestReportServiceDispatchBatch(t *testing.T) {
	db, svc, mail := setupReportService(t)

	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	for i := uint(1); i <= 5; i++ {
		seedStudent(t, db, i, fmt.Sprintf("Student %d", i), fmt.Sprintf("z%07d@unsw.test", i))
		seedMarkedSubmission(t, db, i, 1, intPtr(60), "", base)
	}

	// Student 6 has only an unmarked submission; without a category scope
	// they are left out of the batch.
	seedStudent(t, db, 6, "Student 6", "z0000006@unsw.test")
	seedMarkedSubmission(t, db, 6, 1, nil, "", base)

	result, err := svc.DispatchBatch(context.Background(), "", nil)
	require.NoError(t, err)
	require.Equal(t, 5, result.Total)
	require.Equal(t, 5, result.Sent)
	require.Zero(t, result.Failed)
	require.Len(t, mail.sent, 5)
}

func TestReportServiceDispatchBatchCategoryIncludesUnmarkedSubmitters(t *testing.T) {
	db, svc, mail := setupReportService(t)

	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	seedStudent(t, db, 1, "Marked Student", "z0000001@unsw.test")
	seedMarkedSubmission(t, db, 1, 1, intPtr(90), "", base)

	seedStudent(t, db, 2, "Unmarked Student", "z0000002@unsw.test")
	seedMarkedSubmission(t, db, 2, 1, nil, "", base)

	result, err := svc.DispatchBatch(context.Background(), "forensics", nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Equal(t, 2, result.Sent)
	require.Len(t, mail.sent, 2)
}

func TestReportServiceRenderPDF(t *testing.T) {
	db, svc, _ := setupReportService(t)

	seedStudent(t, db, 1, "Alice Chen", "z1234567@unsw.test")
	require.NoError(t, db.Create(&models.Challenge{ID: 1, Name: "Forensics 1", Category: "forensics", Value: 100}).Error)
	seedMarkedSubmission(t, db, 1, 1, intPtr(90), "nice", time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))

	document, err := svc.RenderPDF(context.Background(), 1, "forensics")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(document.Content, []byte("%PDF")))
	require.Contains(t, document.Filename, "report_Alice_Chen_forensics_")
	require.Contains(t, document.Filename, ".pdf")
}

func TestMarkLabel(t *testing.T) {
	require.Equal(t, "", markLabel(nil))
	require.Equal(t, "Incomplete", markLabel(intPtr(0)))
	require.Equal(t, "Attempted", markLabel(intPtr(30)))
	require.Equal(t, "Okay", markLabel(intPtr(60)))
	require.Equal(t, "Great", markLabel(intPtr(90)))
	require.Equal(t, "HoF", markLabel(intPtr(100)))
	require.Equal(t, "73", markLabel(intPtr(73)))
}
