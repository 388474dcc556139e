package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/utils"
)

// TranscriptHandler exports rosters as documents and imports spreadsheets.
type TranscriptHandler struct {
	exports service.ExportService
	imports service.ImportService
	logger  zerolog.Logger
}

// NewTranscriptHandler constructs a transcript handler.
func NewTranscriptHandler(exports service.ExportService, imports service.ImportService, logger zerolog.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		exports: exports,
		imports: imports,
		logger:  logger.With().Str("component", "transcript_handler").Logger(),
	}
}

// Register wires transcript routes on the rosters group. It must run before the roster routes.
func (h *TranscriptHandler) Register(router fiber.Router) {
	router.Post("/import", h.importSheet)
	router.Get("/:id/export", h.export)
}

func (h *TranscriptHandler) export(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}

	file, err := h.exports.Export(c.UserContext(), id, c.Query("format"), c.Query("policy"))
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return rosterError(c, h.logger, err, "failed to export transcript")
	}

	return utils.Attachment(c, file.FileName, file.ContentType, file.Content)
}

func (h *TranscriptHandler) importSheet(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}
	defer file.Close()

	roster, err := h.imports.Import(c.UserContext(), file, service.ImportOptions{
		StudentName:   c.FormValue("student_name"),
		StudentNumber: c.FormValue("student_number"),
		Policy:        c.FormValue("policy"),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImportInvalidFile),
			errors.Is(err, service.ErrImportMissingColumn),
			errors.Is(err, service.ErrImportEmpty):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			return rosterError(c, h.logger, err, "failed to import roster")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "roster imported", roster)
}
