package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/repository"
	"github.com/noah-isme/marking-hub-api/pkg/mailer"
	"github.com/noah-isme/marking-hub-api/pkg/reportpdf"
)

// ErrNoContactAddress indicates the student has no email address on file.
var ErrNoContactAddress = errors.New("student has no email address")

// ErrNothingToReport indicates no marked submissions exist for the scope.
var ErrNothingToReport = errors.New("no marked submissions for this student")

// ErrDeliveryFailed indicates the notification email could not be sent.
var ErrDeliveryFailed = errors.New("failed to send email")

// markLabels maps the fixed mark percentages to their human names.
var markLabels = map[int]string{
	0:   "Incomplete",
	30:  "Attempted",
	60:  "Okay",
	90:  "Great",
	100: "HoF",
}

// ReportArchiver stores a copy of a dispatched report and returns its URL.
type ReportArchiver interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ReportDocument is a rendered report ready for download.
type ReportDocument struct {
	Filename string
	Content  []byte
}

// ReportService aggregates a student's graded work into PDF reports and
// email notifications.
type ReportService interface {
	Collect(ctx context.Context, studentID uint, category string) ([]reportpdf.Entry, error)
	RenderPDF(ctx context.Context, studentID uint, category string) (ReportDocument, error)
	Dispatch(ctx context.Context, studentID uint, triggeredBy *uint, category string) (dto.ReportDispatchResult, error)
	DispatchBatch(ctx context.Context, category string, triggeredBy *uint) (dto.WeeklyReportResponse, error)
	Categories(ctx context.Context) ([]string, error)
	ListSent(ctx context.Context, filter repository.ReportFilter) ([]models.StudentReport, error)
}

type reportService struct {
	markings    repository.MarkingRepository
	users       repository.UserRepository
	challenges  repository.ChallengeRepository
	submissions repository.SubmissionRepository
	reports     repository.ReportRepository
	mail        mailer.Mailer
	renderer    *reportpdf.Renderer
	cache       *ReportCache
	archiver    ReportArchiver
	events      EventPublisher
	activity    ActivityRecorder
	sanitizer   *bluemonday.Policy
	ctfName     string
	baseURL     string
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReportService constructs the report aggregation service. The archiver
// and event publisher may be nil; delivery then proceeds without archival or
// event fan-out.
func NewReportService(
	markings repository.MarkingRepository,
	users repository.UserRepository,
	challenges repository.ChallengeRepository,
	submissions repository.SubmissionRepository,
	reports repository.ReportRepository,
	mail mailer.Mailer,
	renderer *reportpdf.Renderer,
	cache *ReportCache,
	archiver ReportArchiver,
	events EventPublisher,
	activity ActivityRecorder,
	ctfName string,
	baseURL string,
	logger zerolog.Logger,
) ReportService {
	if ctfName == "" {
		ctfName = "CTF"
	}

	return &reportService{
		markings:    markings,
		users:       users,
		challenges:  challenges,
		submissions: submissions,
		reports:     reports,
		mail:        mail,
		renderer:    renderer,
		cache:       cache,
		archiver:    archiver,
		events:      events,
		activity:    activity,
		sanitizer:   bluemonday.StrictPolicy(),
		ctfName:     ctfName,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

// Collect joins the grading overlay with raw submissions and challenges for
// one student, optionally scoped to a category. Unmarked manual work is
// dropped; autograded challenges are always included. Entries come back
// sorted ascending by submission timestamp string.
func (s *reportService) Collect(ctx context.Context, studentID uint, category string) ([]reportpdf.Entry, error) {
	if _, err := s.users.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	markings, err := s.markings.ListForReport(ctx, studentID, category)
	if err != nil {
		return nil, err
	}

	entries := make([]reportpdf.Entry, 0, len(markings))
	for _, marking := range markings {
		challenge := marking.Submission.Challenge
		technical := challenge.IsTechnical()

		if !technical && !marking.IsMarked() {
			continue
		}

		submittedAt := "N/A"
		if !marking.Submission.Date.IsZero() {
			submittedAt = marking.Submission.Date.Format("2006-01-02 15:04")
		}

		entries = append(entries, reportpdf.Entry{
			Challenge:   s.sanitizer.Sanitize(challenge.DisplayName()),
			SubmittedAt: submittedAt,
			Flag:        s.sanitizer.Sanitize(marking.Submission.Provided),
			Mark:        marking.Mark,
			MarkName:    markLabel(marking.Mark),
			Value:       challenge.MaxValue(),
			Comment:     s.sanitizer.Sanitize(marking.Comment),
			Technical:   technical,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SubmittedAt < entries[j].SubmittedAt
	})

	return entries, nil
}

// RenderPDF produces the downloadable report document, serving from the
// cache when a fresh copy exists.
func (s *reportService) RenderPDF(ctx context.Context, studentID uint, category string) (ReportDocument, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReportDocument{}, ErrStudentNotFound
		}
		return ReportDocument{}, err
	}

	filename := reportFilename(student.Name, category, s.now())

	if cached, ok := s.cache.Get(ctx, studentID, category); ok {
		return ReportDocument{Filename: filename, Content: cached}, nil
	}

	entries, err := s.Collect(ctx, studentID, category)
	if err != nil {
		return ReportDocument{}, err
	}
	if len(entries) == 0 {
		return ReportDocument{}, ErrNothingToReport
	}

	content, err := s.renderer.Render(student.Name, student.Email, subtitleFor(category), entries, s.now())
	if err != nil {
		return ReportDocument{}, err
	}

	s.cache.Set(ctx, studentID, category, content)

	return ReportDocument{Filename: filename, Content: content}, nil
}

// Dispatch generates and emails one student's report. When a category is
// given, zero-mark placeholders are written first for every challenge the
// student skipped. The audit record is persisted only after the email was
// accepted for delivery.
func (s *reportService) Dispatch(ctx context.Context, studentID uint, triggeredBy *uint, category string) (dto.ReportDispatchResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/marking-hub-api/internal/service/report")
	ctx, span := tracer.Start(ctx, "report.dispatch")
	span.SetAttributes(
		attribute.Int64("report.student_id", int64(studentID)),
		attribute.String("report.category", category),
	)
	defer span.End()

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student_not_found")
			return dto.ReportDispatchResult{}, ErrStudentNotFound
		}
		span.RecordError(err)
		return dto.ReportDispatchResult{}, err
	}

	if student.Email == "" {
		span.SetStatus(codes.Error, "no_contact_address")
		return dto.ReportDispatchResult{}, ErrNoContactAddress
	}

	now := s.now()

	if category != "" {
		inserted, err := s.markings.EnsureZeroForCategory(ctx, studentID, category, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "gap_fill_failed")
			return dto.ReportDispatchResult{}, err
		}
		if inserted > 0 {
			s.logger.Debug().
				Uint("student_id", studentID).
				Str("category", category).
				Int("inserted", inserted).
				Msg("zero placeholders created for missing submissions")
		}
	}

	entries, err := s.Collect(ctx, studentID, category)
	if err != nil {
		span.RecordError(err)
		return dto.ReportDispatchResult{}, err
	}
	if len(entries) == 0 {
		span.SetStatus(codes.Error, "nothing_to_report")
		return dto.ReportDispatchResult{}, ErrNothingToReport
	}

	content, err := s.renderer.Render(student.Name, student.Email, subtitleFor(category), entries, now)
	if err != nil {
		span.RecordError(err)
		return dto.ReportDispatchResult{}, err
	}

	categoryLabel := ""
	if category != "" {
		categoryLabel = " - " + category
	}
	subject := fmt.Sprintf("%s - Your%s Performance Report", s.ctfName, categoryLabel)
	body := s.buildEmailBody(student.Name, category, entries)

	if err := s.mail.Send(ctx, student.Email, subject, body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery_failed")
		return dto.ReportDispatchResult{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	filename := reportFilename(student.Name, category, now)

	archiveURL := ""
	if s.archiver != nil {
		url, err := s.archiver.Upload(ctx, filename, bytes.NewReader(content))
		if err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to archive report pdf")
		} else {
			archiveURL = url
		}
	}

	report := models.StudentReport{
		UserID:          studentID,
		SentAt:          now,
		SentBy:          triggeredBy,
		EmailSent:       student.Email,
		ArchiveURL:      archiveURL,
		SubmissionCount: len(entries),
		MarkedCount:     countMarked(entries),
	}
	if category != "" {
		report.Category = &category
	}

	if err := s.reports.Create(ctx, &report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit_record_failed")
		return dto.ReportDispatchResult{}, err
	}

	s.cache.Set(ctx, studentID, category, content)
	s.publishSent(studentID, category, report.ID)

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    deref(triggeredBy),
			ActorRole:  "admin",
			Action:     "report.sent",
			EntityType: "student_report",
			EntityID:   &report.ID,
			Metadata: map[string]interface{}{
				"student_id": studentID,
				"category":   category,
				"entries":    len(entries),
			},
		})
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Str("category", category).
		Str("email", student.Email).
		Msg("report dispatched")

	return dto.ReportDispatchResult{
		Sent:       true,
		Message:    fmt.Sprintf("Report sent to %s", student.Email),
		ArchiveURL: archiveURL,
	}, nil
}

// DispatchBatch sends reports to every student with at least one mark in
// scope. With a category it also includes students who submitted anything in
// that category but have no marks yet, so gap-filling gives them a zeroed
// report. One student's failure never aborts the batch.
func (s *reportService) DispatchBatch(ctx context.Context, category string, triggeredBy *uint) (dto.WeeklyReportResponse, error) {
	studentIDs, err := s.markings.ListMarkedUserIDs(ctx, category)
	if err != nil {
		return dto.WeeklyReportResponse{}, err
	}

	seen := make(map[uint]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		seen[id] = struct{}{}
	}

	if category != "" {
		submitterIDs, err := s.submissions.ListUserIDsByCategory(ctx, category)
		if err != nil {
			return dto.WeeklyReportResponse{}, err
		}
		for _, id := range submitterIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				studentIDs = append(studentIDs, id)
			}
		}
	}

	sort.Slice(studentIDs, func(i, j int) bool { return studentIDs[i] < studentIDs[j] })

	result := dto.WeeklyReportResponse{
		Category: category,
		Total:    len(studentIDs),
		Errors:   []string{},
	}

	for _, studentID := range studentIDs {
		if _, err := s.Dispatch(ctx, studentID, triggeredBy, category); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("User %d: %v", studentID, err))
			continue
		}
		result.Sent++
	}

	s.logger.Info().
		Str("category", category).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("batch reports dispatched")

	return result, nil
}

func (s *reportService) Categories(ctx context.Context) ([]string, error) {
	return s.challenges.ListCategories(ctx)
}

func (s *reportService) ListSent(ctx context.Context, filter repository.ReportFilter) ([]models.StudentReport, error) {
	return s.reports.List(ctx, filter)
}

func (s *reportService) buildEmailBody(studentName, category string, entries []reportpdf.Entry) string {
	categoryLabel := ""
	if category != "" {
		categoryLabel = " - " + category
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", studentName)
	fmt.Fprintf(&b, "Here's your performance report from %s%s.\n\n", s.ctfName, categoryLabel)
	fmt.Fprintf(&b, "Submissions Reviewed: %d\n", len(entries))
	fmt.Fprintf(&b, "Marked: %d\n\n", countMarked(entries))
	b.WriteString("Summary:\n")

	limit := len(entries)
	if limit > 10 {
		limit = 10
	}
	for _, entry := range entries[:limit] {
		label := entry.MarkName
		if label == "" {
			label = "Not marked"
		}
		fmt.Fprintf(&b, "\n- %s: %s", entry.Challenge, label)
	}

	fmt.Fprintf(&b, "\n\nOverall Homework Percentage: %.1f%%", overallPercentage(entries))

	reportURL := s.baseURL + "/api/marking/reports/my-report"
	if category != "" {
		reportURL += "?category=" + category
	}
	fmt.Fprintf(&b, "\n\nView your full detailed report here:\n%s\n", reportURL)
	b.WriteString("\n(You must be logged in to view your report)\n")
	fmt.Fprintf(&b, "\nBest regards,\n%s Team\n", s.ctfName)

	return b.String()
}

func (s *reportService) publishSent(studentID uint, category string, reportID uint) {
	if s.events == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"student_id": studentID,
		"category":   category,
		"report_id":  reportID,
	})
	if err != nil {
		return
	}

	if err := s.events.Publish(EventSubjectReportSent, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish report sent event")
	}
}

// markLabel maps a mark to its named grade band; unmapped marks render as
// their literal value and a nil mark as the empty string.
func markLabel(mark *int) string {
	if mark == nil {
		return ""
	}
	if label, ok := markLabels[*mark]; ok {
		return label
	}

	return strconv.Itoa(*mark)
}

func countMarked(entries []reportpdf.Entry) int {
	marked := 0
	for _, entry := range entries {
		if entry.Mark != nil {
			marked++
		}
	}

	return marked
}

// overallPercentage is sum(marks)/sum(values) across all included entries,
// zero when the denominator is zero.
func overallPercentage(entries []reportpdf.Entry) float64 {
	totalMarks := 0
	totalPossible := 0
	for _, entry := range entries {
		if entry.Mark != nil {
			totalMarks += *entry.Mark
		}
		totalPossible += entry.Value
	}

	if totalPossible == 0 {
		return 0
	}

	return float64(totalMarks) / float64(totalPossible) * 100
}

func subtitleFor(category string) string {
	if category == "" {
		return "Performance Report"
	}

	return "Performance Report - " + category
}

func reportFilename(studentName, category string, now time.Time) string {
	scope := category
	if scope == "" {
		scope = "full"
	}

	return fmt.Sprintf("report_%s_%s_%s.pdf", slugify(studentName), slugify(scope), now.Format("20060102"))
}

func slugify(input string) string {
	slug := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, input)

	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "student"
	}

	return slug
}
