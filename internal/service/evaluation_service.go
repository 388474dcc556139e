package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/observability"
)

// Evaluation sources used as metric labels.
const (
	SourceStateless = "stateless"
	SourceWebsocket = "websocket"
	SourceRoster    = "roster"
)

// ErrInvalidPayload indicates a message that is not a grade sheet.
var ErrInvalidPayload = errors.New("invalid evaluation payload")

// EvaluationService evaluates grade sheets that are not persisted.
type EvaluationService interface {
	Evaluate(ctx context.Context, req dto.EvaluateRequest) (grading.Result, error)
	EvaluateMessage(ctx context.Context, payload []byte) (grading.Result, error)
}

type evaluationService struct {
	engine    *grading.Engine
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEvaluationService constructs the stateless evaluation service.
func NewEvaluationService(engine *grading.Engine, validate *validator.Validate, logger zerolog.Logger) EvaluationService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &evaluationService{
		engine:    engine,
		validator: validate,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gradebook-api/internal/service/evaluation"),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req dto.EvaluateRequest) (grading.Result, error) {
	return s.evaluate(ctx, req, SourceStateless)
}

// EvaluateMessage decodes one websocket message and evaluates it.
func (s *evaluationService) EvaluateMessage(ctx context.Context, payload []byte) (grading.Result, error) {
	var req dto.EvaluateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return grading.Result{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s.evaluate(ctx, req, SourceWebsocket)
}

func (s *evaluationService) evaluate(ctx context.Context, req dto.EvaluateRequest, source string) (grading.Result, error) {
	_, span := s.tracer.Start(ctx, "evaluation.evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("evaluation.source", source),
		attribute.Int("evaluation.modules", len(req.Modules)),
	)

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return grading.Result{}, err
	}

	policy, err := resolvePolicy(s.engine, req.Policy, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid policy")
		return grading.Result{}, err
	}

	start := time.Now()
	result := s.engine.EvaluateWith(req.Roster(), policy)
	observability.EvaluationLatency().WithLabelValues(source).Observe(time.Since(start).Seconds())
	observability.Evaluations().WithLabelValues(policy.String(), source).Inc()

	span.SetAttributes(attribute.Float64("evaluation.overall_average", result.OverallAverage))
	span.SetStatus(codes.Ok, "evaluated")
	return result, nil
}
