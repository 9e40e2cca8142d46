package handler

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/observability"
	"github.com/noah-isme/marking-hub-api/internal/service"
	"github.com/noah-isme/marking-hub-api/internal/utils"
)

// TokenHandler exposes the delegated submission protocol endpoints. Neither
// endpoint sits behind the host JWT: issuance authenticates via the shared
// autograder secret, redemption via the token itself.
type TokenHandler struct {
	service          service.TokenService
	autograderSecret string
	logger           zerolog.Logger
}

// NewTokenHandler constructs the handler.
func NewTokenHandler(service service.TokenService, autograderSecret string, logger zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		service:          service,
		autograderSecret: autograderSecret,
		logger:           logger.With().Str("component", "token_handler").Logger(),
	}
}

// Register attaches token endpoints to the router group.
func (h *TokenHandler) Register(router fiber.Router) {
	router.Post("/", h.issue)
	router.Post("/redeem", h.redeem)
}

func (h *TokenHandler) issue(c *fiber.Ctx) error {
	provided := c.Get("X-Autograder-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.autograderSecret)) != 1 {
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid autograder secret")
	}

	var payload dto.TokenIssueRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Issue(c.Context(), payload, nil)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrChallengeNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to issue token")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to issue token")
		}
	}

	observability.TokensIssued().Inc()

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "token issued", response)
}

func (h *TokenHandler) redeem(c *fiber.Ctx) error {
	var payload dto.TokenRedeemRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Redeem(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrHashMismatch):
			observability.TokensRedeemed().WithLabelValues("forged").Inc()
			return utils.SendError(c, fiber.StatusForbidden, "token hash mismatch")
		case errors.Is(err, service.ErrTokenReplayed):
			observability.TokensRedeemed().WithLabelValues("replayed").Inc()
			return utils.SendError(c, fiber.StatusForbidden, "token already used")
		case errors.Is(err, service.ErrTokenExpired):
			observability.TokensRedeemed().WithLabelValues("expired").Inc()
			return utils.SendError(c, fiber.StatusForbidden, "token expired")
		case errors.Is(err, service.ErrTokenNotFound):
			observability.TokensRedeemed().WithLabelValues("unknown").Inc()
			return utils.SendError(c, fiber.StatusNotFound, "token not found")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrChallengeNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "challenge not found")
		case errors.Is(err, service.ErrEmptyFlag):
			return utils.SendError(c, fiber.StatusBadRequest, "flag must not be empty")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to redeem token")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to redeem token")
		}
	}

	observability.TokensRedeemed().WithLabelValues("accepted").Inc()

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", response)
}
