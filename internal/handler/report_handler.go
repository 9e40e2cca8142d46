package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/models"
	"github.com/noah-isme/marking-hub-api/internal/observability"
	"github.com/noah-isme/marking-hub-api/internal/repository"
	"github.com/noah-isme/marking-hub-api/internal/service"
	"github.com/noah-isme/marking-hub-api/internal/utils"
)

// ReportHandler exposes report generation, dispatch and audit endpoints.
type ReportHandler struct {
	service service.ReportService
	tutors  repository.TutorRepository
	logger  zerolog.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(service service.ReportService, tutors repository.TutorRepository, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		tutors:  tutors,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// RegisterAdmin attaches the admin-only report endpoints.
func (h *ReportHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/send", h.send)
	router.Post("/weekly", h.weekly)
	router.Get("/", h.listSent)
}

// RegisterTutor attaches endpoints available to tutors and admins.
func (h *ReportHandler) RegisterTutor(router fiber.Router) {
	router.Get("/:studentID/download", h.download)
}

// RegisterStudent attaches the self-service report endpoint linked from
// notification emails.
func (h *ReportHandler) RegisterStudent(router fiber.Router) {
	router.Get("/my-report", h.myReport)
}

func (h *ReportHandler) send(c *fiber.Ctx) error {
	var payload dto.ReportSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	triggeredBy := userIDFromContext(c)
	result, err := h.service.Dispatch(c.Context(), payload.StudentID, &triggeredBy, payload.Category)
	if err != nil {
		observability.ReportsSent().WithLabelValues("failed").Inc()
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrNoContactAddress):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "student has no email address")
		case errors.Is(err, service.ErrNothingToReport):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "no marked submissions for this student")
		case errors.Is(err, service.ErrDeliveryFailed):
			return utils.SendError(c, fiber.StatusBadGateway, "failed to send report email")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("student_id", payload.StudentID).Msg("failed to dispatch report")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to dispatch report")
		}
	}

	observability.ReportsSent().WithLabelValues("sent").Inc()

	return utils.SendSuccess(c, "report sent", result)
}

func (h *ReportHandler) weekly(c *fiber.Ctx) error {
	var payload dto.WeeklyReportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	triggeredBy := userIDFromContext(c)
	result, err := h.service.DispatchBatch(c.Context(), payload.Category, &triggeredBy)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to dispatch weekly reports")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to dispatch weekly reports")
	}

	return utils.SendSuccess(c, "weekly reports processed", result)
}

func (h *ReportHandler) listSent(c *fiber.Ctx) error {
	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	reports, err := h.service.ListSent(c.Context(), repository.ReportFilter{
		UserID:   studentID,
		Category: c.Query("category"),
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list sent reports")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list reports")
	}

	return utils.SendSuccess(c, "reports retrieved", dto.NewStudentReportResponseSlice(reports))
}

func (h *ReportHandler) download(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	// Tutors may only download reports for their assigned students.
	if userRoleFromContext(c) != models.RoleAdmin {
		assigned, err := h.tutors.IsAssigned(c.Context(), studentID, userIDFromContext(c))
		if err != nil {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to verify assignment")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to verify assignment")
		}
		if !assigned {
			return utils.SendError(c, fiber.StatusForbidden, "student is not assigned to you")
		}
	}

	return h.servePDF(c, studentID, c.Query("category"))
}

func (h *ReportHandler) myReport(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	return h.servePDF(c, studentID, c.Query("category"))
}

func (h *ReportHandler) servePDF(c *fiber.Ctx, studentID uint, category string) error {
	document, err := h.service.RenderPDF(c.Context(), studentID, category)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrNothingToReport):
			return utils.SendError(c, fiber.StatusNotFound, "no marked submissions for this student")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("student_id", studentID).Msg("failed to render report pdf")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to render report")
		}
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", document.Filename))

	return c.Send(document.Content)
}

// CategoriesHandler lists challenge categories for filter dropdowns.
func CategoriesHandler(service service.ReportService, logger zerolog.Logger) fiber.Handler {
	componentLogger := logger.With().Str("component", "categories_handler").Logger()

	return func(c *fiber.Ctx) error {
		categories, err := service.Categories(c.Context())
		if err != nil {
			requestLogger(componentLogger, c).Error().Err(err).Msg("failed to list categories")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to list categories")
		}

		return utils.SendSuccess(c, "categories retrieved", categories)
	}
}
