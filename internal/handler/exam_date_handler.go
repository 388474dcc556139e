package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/utils"
)

// ExamDateHandler serves the exam calendar.
type ExamDateHandler struct {
	service service.ExamDateService
	logger  zerolog.Logger
}

// NewExamDateHandler constructs an exam calendar handler.
func NewExamDateHandler(service service.ExamDateService, logger zerolog.Logger) *ExamDateHandler {
	return &ExamDateHandler{
		service: service,
		logger:  logger.With().Str("component", "exam_date_handler").Logger(),
	}
}

// RegisterPublic wires the countdown listing.
func (h *ExamDateHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.list)
}

// RegisterAdmin wires calendar edits.
func (h *ExamDateHandler) RegisterAdmin(router fiber.Router) {
	router.Put("/:key", h.set)
	router.Delete("/:key", h.delete)
}

func (h *ExamDateHandler) list(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list exam dates")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list exam dates")
	}

	return utils.SendSuccess(c, "exam dates retrieved", items)
}

func (h *ExamDateHandler) set(c *fiber.Ctx) error {
	var req dto.ExamDateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	item, err := h.service.Set(c.UserContext(), c.Params("key"), req)
	if err != nil {
		return h.fail(c, err, "failed to save exam date")
	}

	return utils.SendSuccess(c, "exam date saved", item)
}

func (h *ExamDateHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("key")); err != nil {
		return h.fail(c, err, "failed to delete exam date")
	}

	return utils.SendSuccess(c, "exam date deleted", nil)
}

func (h *ExamDateHandler) fail(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return validationFailed(c, err)
	case errors.Is(err, service.ErrInvalidExamKey), errors.Is(err, service.ErrInvalidExamDate):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrExamDateNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
