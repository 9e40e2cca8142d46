package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/repository"
	"github.com/noah-isme/marking-hub-api/internal/service"
	"github.com/noah-isme/marking-hub-api/internal/utils"
)

// TutorHandler exposes tutor role and assignment administration endpoints.
type TutorHandler struct {
	service service.TutorService
	logger  zerolog.Logger
}

// NewTutorHandler constructs the handler.
func NewTutorHandler(service service.TutorService, logger zerolog.Logger) *TutorHandler {
	return &TutorHandler{
		service: service,
		logger:  logger.With().Str("component", "tutor_handler").Logger(),
	}
}

// RegisterTutors attaches tutor role endpoints to the router group.
func (h *TutorHandler) RegisterTutors(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.grant)
	router.Delete("/:userID", h.revoke)
}

// RegisterAssignments attaches assignment endpoints to the router group.
func (h *TutorHandler) RegisterAssignments(router fiber.Router) {
	router.Get("/", h.listAssignments)
	router.Post("/", h.assign)
	router.Delete("/", h.unassign)
}

func (h *TutorHandler) list(c *fiber.Ctx) error {
	tutors, err := h.service.List(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list tutors")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list tutors")
	}

	return utils.SendSuccess(c, "tutors retrieved", tutors)
}

func (h *TutorHandler) grant(c *fiber.Ctx) error {
	var payload dto.TutorGrantRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	tutor, err := h.service.Grant(c.Context(), activityActorFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrTutorExists):
			return utils.SendError(c, fiber.StatusConflict, "user is already a tutor")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to grant tutor role")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to grant tutor role")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "tutor role granted", tutor)
}

func (h *TutorHandler) revoke(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Revoke(c.Context(), activityActorFromContext(c), userID); err != nil {
		switch {
		case errors.Is(err, service.ErrTutorNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "tutor not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("user_id", userID).Msg("failed to revoke tutor role")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to revoke tutor role")
		}
	}

	return utils.SendSuccess(c, "tutor role revoked", nil)
}

func (h *TutorHandler) listAssignments(c *fiber.Ctx) error {
	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	tutorID, err := parseQueryUint(c, "tutor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid tutor_id")
	}

	assignments, err := h.service.ListAssignments(c.Context(), repository.AssignmentFilter{
		UserID:  studentID,
		TutorID: tutorID,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list assignments")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list assignments")
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *TutorHandler) assign(c *fiber.Ctx) error {
	var payload dto.AssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.Assign(c.Context(), activityActorFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrNotATutor):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "user does not hold the tutor role")
		case errors.Is(err, service.ErrAssignmentExists):
			return utils.SendError(c, fiber.StatusConflict, "assignment already exists")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create assignment")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create assignment")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *TutorHandler) unassign(c *fiber.Ctx) error {
	var payload dto.AssignmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.Unassign(c.Context(), activityActorFromContext(c), payload); err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete assignment")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete assignment")
		}
	}

	return utils.SendSuccess(c, "assignment removed", nil)
}
