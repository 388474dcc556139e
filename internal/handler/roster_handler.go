package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/utils"
)

// RosterHandler exposes persisted grade sheets.
type RosterHandler struct {
	service service.RosterService
	logger  zerolog.Logger
}

// NewRosterHandler constructs a roster handler.
func NewRosterHandler(service service.RosterService, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		service: service,
		logger:  logger.With().Str("component", "roster_handler").Logger(),
	}
}

// Register wires roster routes.
func (h *RosterHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)

	router.Post("/:id/modules", h.addModule)
	router.Patch("/:id/modules/:moduleId", h.renameModule)
	router.Delete("/:id/modules/:moduleId", h.deleteModule)
	router.Post("/:id/modules/:moduleId/subjects", h.addSubject)
	router.Patch("/:id/subjects/:subjectId", h.updateSubject)
	router.Delete("/:id/subjects/:subjectId", h.deleteSubject)

	router.Get("/:id/evaluation", h.evaluate)
	router.Get("/:id/evaluations", h.history)
}

func (h *RosterHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	result, err := h.service.List(c.UserContext(), dto.RosterListRequest{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return h.fail(c, err, "failed to list rosters")
	}

	return utils.OK(c, result.Items, "rosters retrieved", result.Pagination)
}

func (h *RosterHandler) create(c *fiber.Ctx) error {
	var req dto.RosterCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	roster, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err, "failed to create roster")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "roster created", roster)
}

func (h *RosterHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}

	roster, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err, "failed to load roster")
	}

	return utils.SendSuccess(c, "roster retrieved", roster)
}

func (h *RosterHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}

	var req dto.RosterUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	roster, err := h.service.Update(c.UserContext(), id, req)
	if err != nil {
		return h.fail(c, err, "failed to update roster")
	}

	return utils.SendSuccess(c, "roster updated", roster)
}

func (h *RosterHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.fail(c, err, "failed to delete roster")
	}

	return utils.SendSuccess(c, "roster deleted", nil)
}

func (h *RosterHandler) addModule(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}

	var req dto.ModuleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	module, err := h.service.AddModule(c.UserContext(), id, req)
	if err != nil {
		return h.fail(c, err, "failed to add module")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "module added", module)
}

func (h *RosterHandler) renameModule(c *fiber.Ctx) error {
	id, moduleID, err := parseChildParams(c, "moduleId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.ModuleRenameRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	module, err := h.service.RenameModule(c.UserContext(), id, moduleID, req)
	if err != nil {
		return h.fail(c, err, "failed to rename module")
	}

	return utils.SendSuccess(c, "module renamed", module)
}

func (h *RosterHandler) deleteModule(c *fiber.Ctx) error {
	id, moduleID, err := parseChildParams(c, "moduleId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteModule(c.UserContext(), id, moduleID); err != nil {
		return h.fail(c, err, "failed to delete module")
	}

	return utils.SendSuccess(c, "module deleted", nil)
}

func (h *RosterHandler) addSubject(c *fiber.Ctx) error {
	id, moduleID, err := parseChildParams(c, "moduleId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.SubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	subject, err := h.service.AddSubject(c.UserContext(), id, moduleID, req)
	if err != nil {
		return h.fail(c, err, "failed to add subject")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject added", subject)
}

func (h *RosterHandler) updateSubject(c *fiber.Ctx) error {
	id, subjectID, err := parseChildParams(c, "subjectId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.SubjectUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	subject, err := h.service.UpdateSubject(c.UserContext(), id, subjectID, req)
	if err != nil {
		return h.fail(c, err, "failed to update subject")
	}

	return utils.SendSuccess(c, "subject updated", subject)
}

func (h *RosterHandler) deleteSubject(c *fiber.Ctx) error {
	id, subjectID, err := parseChildParams(c, "subjectId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteSubject(c.UserContext(), id, subjectID); err != nil {
		return h.fail(c, err, "failed to delete subject")
	}

	return utils.SendSuccess(c, "subject deleted", nil)
}

func (h *RosterHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}

	result, err := h.service.Evaluate(c.UserContext(), id, c.Query("policy"))
	if err != nil {
		return h.fail(c, err, "failed to evaluate roster")
	}

	return utils.SendSuccess(c, "roster evaluated", result)
}

func (h *RosterHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster id")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	records, err := h.service.History(c.UserContext(), id, limit)
	if err != nil {
		return h.fail(c, err, "failed to load evaluation history")
	}

	return utils.SendSuccess(c, "evaluation history retrieved", records)
}

func (h *RosterHandler) fail(c *fiber.Ctx, err error, message string) error {
	return rosterError(c, h.logger, err, message)
}

// rosterError maps roster service errors to HTTP responses.
func rosterError(c *fiber.Ctx, logger zerolog.Logger, err error, message string) error {
	switch {
	case isValidationError(err):
		return validationFailed(c, err)
	case errors.Is(err, service.ErrRosterNotFound),
		errors.Is(err, service.ErrModuleNotFound),
		errors.Is(err, service.ErrSubjectNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidPolicy):
		return invalidPolicy(c, err)
	default:
		requestLogger(logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}

func parseChildParams(c *fiber.Ctx, child string) (uint, uint, error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, errors.New("invalid roster id")
	}
	childID, err := parseUintParam(c, child)
	if err != nil {
		return 0, 0, errors.New("invalid " + strings.TrimSuffix(child, "Id") + " id")
	}
	return id, childID, nil
}
