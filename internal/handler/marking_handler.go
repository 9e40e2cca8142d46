package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/service"
	"github.com/noah-isme/marking-hub-api/internal/utils"
)

// MarkingHandler exposes the grading overlay endpoints for tutors and admins.
type MarkingHandler struct {
	service service.MarkingService
	logger  zerolog.Logger
}

// NewMarkingHandler constructs the handler.
func NewMarkingHandler(service service.MarkingService, logger zerolog.Logger) *MarkingHandler {
	return &MarkingHandler{
		service: service,
		logger:  logger.With().Str("component", "marking_handler").Logger(),
	}
}

// Register attaches marking endpoints to the router group.
func (h *MarkingHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/sync", h.sync)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.grade)
}

func (h *MarkingHandler) list(c *fiber.Ctx) error {
	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	challengeID, err := parseQueryUint(c, "challenge_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid challenge_id")
	}

	marked, err := parseQueryBool(c, "marked")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid marked filter")
	}

	filter := dto.MarkingListFilter{
		StudentID:   studentID,
		ChallengeID: challengeID,
		Category:    c.Query("category"),
		Marked:      marked,
	}

	markings, err := h.service.List(c.Context(), activityActorFromContext(c), filter)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list marking submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", markings)
}

func (h *MarkingHandler) sync(c *fiber.Ctx) error {
	result, err := h.service.Sync(c.Context(), activityActorFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to sync marking submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to sync submissions")
	}

	return utils.SendSuccess(c, "submissions synced", result)
}

func (h *MarkingHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	marking, err := h.service.Get(c.Context(), activityActorFromContext(c), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarkingNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrNotPermitted):
			return utils.SendError(c, fiber.StatusForbidden, "submission is not assigned to you")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("marking_id", id).Msg("failed to fetch marking submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch submission")
		}
	}

	return utils.SendSuccess(c, "submission retrieved", marking)
}

func (h *MarkingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	marking, err := h.service.Grade(c.Context(), activityActorFromContext(c), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarkingNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrNotPermitted):
			return utils.SendError(c, fiber.StatusForbidden, "submission is not assigned to you")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("marking_id", id).Msg("failed to grade submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade submission")
		}
	}

	return utils.SendSuccess(c, "submission graded", marking)
}
