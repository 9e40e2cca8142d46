package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/service"
	"github.com/noah-isme/marking-hub-api/internal/utils"
)

// DeadlineHandler exposes marking deadline endpoints.
type DeadlineHandler struct {
	service service.DeadlineService
	logger  zerolog.Logger
}

// NewDeadlineHandler constructs the handler.
func NewDeadlineHandler(service service.DeadlineService, logger zerolog.Logger) *DeadlineHandler {
	return &DeadlineHandler{
		service: service,
		logger:  logger.With().Str("component", "deadline_handler").Logger(),
	}
}

// RegisterRead attaches the read endpoints available to tutors and admins.
func (h *DeadlineHandler) RegisterRead(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:challengeID", h.get)
}

// RegisterWrite attaches the admin-only write endpoint.
func (h *DeadlineHandler) RegisterWrite(router fiber.Router) {
	router.Put("/:challengeID", h.upsert)
}

func (h *DeadlineHandler) list(c *fiber.Ctx) error {
	deadlines, err := h.service.List(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list deadlines")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list deadlines")
	}

	return utils.SendSuccess(c, "deadlines retrieved", deadlines)
}

func (h *DeadlineHandler) get(c *fiber.Ctx) error {
	challengeID, err := parseUintParam(c, "challengeID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	deadline, err := h.service.Get(c.Context(), challengeID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeadlineNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "deadline not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("challenge_id", challengeID).Msg("failed to fetch deadline")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch deadline")
		}
	}

	return utils.SendSuccess(c, "deadline retrieved", deadline)
}

func (h *DeadlineHandler) upsert(c *fiber.Ctx) error {
	challengeID, err := parseUintParam(c, "challengeID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.DeadlineUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	deadline, err := h.service.Upsert(c.Context(), activityActorFromContext(c), challengeID, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
		case errors.Is(err, service.ErrInvalidDueDate):
			return utils.SendError(c, fiber.StatusBadRequest, "due date must be RFC 3339")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("challenge_id", challengeID).Msg("failed to set deadline")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to set deadline")
		}
	}

	return utils.SendSuccess(c, "deadline saved", deadline)
}
