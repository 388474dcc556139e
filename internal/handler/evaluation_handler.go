package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/observability"
	"github.com/noah-isme/gradebook-api/internal/service"
	"github.com/noah-isme/gradebook-api/internal/utils"
)

const evaluationMessageLimit = 1 << 20

// Frame types sent on the live evaluation socket.
const (
	FrameResult = "result"
	FrameError  = "error"
)

// EvaluationHandler evaluates grade sheets sent by clients, over HTTP or a websocket.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("", h.evaluate)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.stream))
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var req dto.EvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Evaluate(c.UserContext(), req)
	if err != nil {
		switch {
		case isValidationError(err):
			return validationFailed(c, err)
		case errors.Is(err, service.ErrInvalidPolicy):
			return invalidPolicy(c, err)
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("evaluation failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "evaluation failed")
		}
	}

	return utils.SendSuccess(c, "grade sheet evaluated", result)
}

// stream answers every inbound sheet with one frame carrying the same sequence number.
func (h *EvaluationHandler) stream(conn *websocket.Conn) {
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := h.logger.With().Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).Logger()

	observability.EvaluationSockets().Inc()
	defer observability.EvaluationSockets().Dec()
	logger.Info().Msg("evaluation websocket connected")

	conn.SetReadLimit(evaluationMessageLimit)

	var seq int64
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("evaluation websocket closed unexpectedly")
			}
			break
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		seq++
		frame := dto.EvaluationFrame{Type: FrameResult, Seq: seq}
		result, err := h.service.EvaluateMessage(ctx, payload)
		if err != nil {
			frame.Type = FrameError
			frame.Error = err.Error()
		} else {
			frame.Result = &result
		}

		if err := conn.WriteJSON(frame); err != nil {
			logger.Warn().Err(err).Msg("failed to write evaluation frame")
			break
		}
	}

	logger.Info().Int64("messages", seq).Msg("evaluation websocket disconnected")
}
