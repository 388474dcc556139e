package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/utils"
)

// DocumentHandler serves the PDF library.
type DocumentHandler struct {
	service service.DocumentService
	logger  zerolog.Logger
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(service service.DocumentService, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger.With().Str("component", "document_handler").Logger(),
	}
}

// RegisterPublic wires the public listing.
func (h *DocumentHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.list)
}

// RegisterAdmin wires upload and removal. The router must already enforce the admin role.
func (h *DocumentHandler) RegisterAdmin(router fiber.Router) {
	router.Post("", h.upload)
	router.Delete("/:id", h.delete)
}

func (h *DocumentHandler) list(c *fiber.Ctx) error {
	documents, err := h.service.List(c.UserContext(), c.Query("slot"))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list documents")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list documents")
	}

	return utils.SendSuccess(c, "documents retrieved", documents)
}

func (h *DocumentHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	req := dto.DocumentUploadRequest{
		Title: c.FormValue("title"),
		Slot:  c.FormValue("slot"),
	}

	document, err := h.service.Upload(c.UserContext(), file, req, middleware.CurrentSubject(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return validationFailed(c, err)
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrUploadTypeNotAllowed), errors.Is(err, service.ErrUploadMissingFile):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("document upload failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "upload failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document uploaded", document)
}

func (h *DocumentHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid document id")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("document_id", id).Msg("failed to delete document")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete document")
	}

	return utils.SendSuccess(c, "document deleted", nil)
}
