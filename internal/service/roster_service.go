package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/observability"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

var (
	// ErrRosterNotFound indicates the roster does not exist.
	ErrRosterNotFound = errors.New("roster not found")
	// ErrModuleNotFound indicates the module does not exist in the roster.
	ErrModuleNotFound = errors.New("module not found")
	// ErrSubjectNotFound indicates the subject does not exist in the roster.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrInvalidPolicy indicates an unknown compensation policy name.
	ErrInvalidPolicy = errors.New("invalid grading policy")
)

const defaultHistoryLimit = 20

// RosterService manages persisted grade sheets and their evaluations.
type RosterService interface {
	List(ctx context.Context, req dto.RosterListRequest) (dto.RosterListResponse, error)
	Get(ctx context.Context, id uint) (dto.RosterResponse, error)
	Create(ctx context.Context, req dto.RosterCreateRequest) (dto.RosterResponse, error)
	Update(ctx context.Context, id uint, req dto.RosterUpdateRequest) (dto.RosterResponse, error)
	Delete(ctx context.Context, id uint) error

	AddModule(ctx context.Context, rosterID uint, req dto.ModuleRequest) (dto.ModuleResponse, error)
	RenameModule(ctx context.Context, rosterID, moduleID uint, req dto.ModuleRenameRequest) (dto.ModuleResponse, error)
	DeleteModule(ctx context.Context, rosterID, moduleID uint) error

	AddSubject(ctx context.Context, rosterID, moduleID uint, req dto.SubjectRequest) (dto.SubjectResponse, error)
	UpdateSubject(ctx context.Context, rosterID, subjectID uint, req dto.SubjectUpdateRequest) (dto.SubjectResponse, error)
	DeleteSubject(ctx context.Context, rosterID, subjectID uint) error

	Evaluate(ctx context.Context, id uint, policyOverride string) (dto.RosterEvaluationResponse, error)
	History(ctx context.Context, id uint, limit int) ([]dto.EvaluationRecordResponse, error)
}

// RosterServiceConfig carries the optional collaborators of the roster service.
type RosterServiceConfig struct {
	Cache    *redis.Client
	CacheTTL time.Duration
	Events   EventPublisher
}

type rosterService struct {
	repo        repository.RosterRepository
	evaluations repository.EvaluationRepository
	engine      *grading.Engine
	validator   *validator.Validate
	cache       *redis.Client
	ttl         time.Duration
	events      EventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type rosterEvaluatedEvent struct {
	RosterID          uint    `json:"roster_id"`
	RosterVersion     uint    `json:"roster_version"`
	Policy            string  `json:"policy"`
	OverallAverage    float64 `json:"overall_average"`
	ValidatedModules  int     `json:"validated_modules"`
	ValidatedSubjects int     `json:"validated_subjects"`
}

// NewRosterService constructs the roster service.
func NewRosterService(repo repository.RosterRepository, evaluations repository.EvaluationRepository, engine *grading.Engine, validate *validator.Validate, cfg RosterServiceConfig, logger zerolog.Logger) RosterService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &rosterService{
		repo:        repo,
		evaluations: evaluations,
		engine:      engine,
		validator:   validate,
		cache:       cfg.Cache,
		ttl:         ttl,
		events:      cfg.Events,
		logger:      logger.With().Str("component", "roster_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gradebook-api/internal/service/roster"),
		now:         time.Now,
	}
}

func (s *rosterService) List(ctx context.Context, req dto.RosterListRequest) (dto.RosterListResponse, error) {
	page := maxInt(req.Page, 1)
	pageSize := clampPageSize(req.PageSize)

	rosters, total, err := s.repo.List(ctx, repository.RosterFilter{
		Search:   sanitizeText(req.Search),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.RosterListResponse{}, err
	}

	items := make([]dto.RosterSummary, 0, len(rosters))
	for _, roster := range rosters {
		items = append(items, dto.NewRosterSummary(roster))
	}

	return dto.RosterListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func (s *rosterService) Get(ctx context.Context, id uint) (dto.RosterResponse, error) {
	roster, err := s.load(ctx, id)
	if err != nil {
		return dto.RosterResponse{}, err
	}
	return dto.NewRosterResponse(roster), nil
}

func (s *rosterService) Create(ctx context.Context, req dto.RosterCreateRequest) (dto.RosterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RosterResponse{}, err
	}

	policy, err := normalizePolicy(req.Policy)
	if err != nil {
		return dto.RosterResponse{}, err
	}

	roster := models.Roster{
		StudentName:   sanitizeText(req.StudentName),
		StudentNumber: sanitizeText(req.StudentNumber),
		Policy:        policy,
		Modules:       make([]models.RosterModule, 0, len(req.Modules)),
	}
	for _, module := range req.Modules {
		roster.Modules = append(roster.Modules, newModuleModel(module))
	}

	if err := s.repo.Create(ctx, &roster); err != nil {
		return dto.RosterResponse{}, err
	}

	s.logger.Info().Uint("roster_id", roster.ID).Int("modules", len(roster.Modules)).Msg("roster created")
	return s.Get(ctx, roster.ID)
}

func (s *rosterService) Update(ctx context.Context, id uint, req dto.RosterUpdateRequest) (dto.RosterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RosterResponse{}, err
	}

	roster, err := s.load(ctx, id)
	if err != nil {
		return dto.RosterResponse{}, err
	}

	if req.StudentName != nil {
		roster.StudentName = sanitizeText(*req.StudentName)
	}
	if req.StudentNumber != nil {
		roster.StudentNumber = sanitizeText(*req.StudentNumber)
	}
	if req.Policy != nil {
		policy, err := normalizePolicy(*req.Policy)
		if err != nil {
			return dto.RosterResponse{}, err
		}
		roster.Policy = policy
	}

	if err := s.repo.Update(ctx, &roster); err != nil {
		return dto.RosterResponse{}, s.translate(err, ErrRosterNotFound)
	}
	return s.Get(ctx, id)
}

func (s *rosterService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, ErrRosterNotFound)
	}
	s.logger.Info().Uint("roster_id", id).Msg("roster deleted")
	return nil
}

func (s *rosterService) AddModule(ctx context.Context, rosterID uint, req dto.ModuleRequest) (dto.ModuleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ModuleResponse{}, err
	}

	module := newModuleModel(req)
	module.RosterID = rosterID
	if err := s.repo.CreateModule(ctx, &module); err != nil {
		return dto.ModuleResponse{}, s.translate(err, ErrRosterNotFound)
	}

	stored, err := s.repo.GetModule(ctx, rosterID, module.ID)
	if err != nil {
		return dto.ModuleResponse{}, s.translate(err, ErrModuleNotFound)
	}
	return dto.NewModuleResponse(stored), nil
}

func (s *rosterService) RenameModule(ctx context.Context, rosterID, moduleID uint, req dto.ModuleRenameRequest) (dto.ModuleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ModuleResponse{}, err
	}

	module := models.RosterModule{ID: moduleID, RosterID: rosterID, Name: sanitizeText(req.Name)}
	if err := s.repo.UpdateModule(ctx, &module); err != nil {
		return dto.ModuleResponse{}, s.translate(err, ErrModuleNotFound)
	}

	stored, err := s.repo.GetModule(ctx, rosterID, moduleID)
	if err != nil {
		return dto.ModuleResponse{}, s.translate(err, ErrModuleNotFound)
	}
	return dto.NewModuleResponse(stored), nil
}

func (s *rosterService) DeleteModule(ctx context.Context, rosterID, moduleID uint) error {
	return s.translate(s.repo.DeleteModule(ctx, rosterID, moduleID), ErrModuleNotFound)
}

func (s *rosterService) AddSubject(ctx context.Context, rosterID, moduleID uint, req dto.SubjectRequest) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubjectResponse{}, err
	}

	subject := newSubjectModel(req)
	subject.RosterID = rosterID
	subject.ModuleID = moduleID
	if err := s.repo.CreateSubject(ctx, &subject); err != nil {
		return dto.SubjectResponse{}, s.translate(err, ErrModuleNotFound)
	}
	return dto.NewSubjectResponse(subject), nil
}

func (s *rosterService) UpdateSubject(ctx context.Context, rosterID, subjectID uint, req dto.SubjectUpdateRequest) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubjectResponse{}, err
	}

	subject, err := s.repo.GetSubject(ctx, rosterID, subjectID)
	if err != nil {
		return dto.SubjectResponse{}, s.translate(err, ErrSubjectNotFound)
	}

	if req.Name != nil {
		subject.Name = sanitizeText(*req.Name)
	}
	if req.Exam.Set {
		subject.Exam = storedGrade(req.Exam.Score)
	}
	if req.Devoir.Set {
		subject.Devoir = storedGrade(req.Devoir.Score)
	}
	if req.Coefficient.Set {
		subject.Coefficient = storedCoefficient(req.Coefficient.Score)
	}

	if err := s.repo.UpdateSubject(ctx, &subject); err != nil {
		return dto.SubjectResponse{}, s.translate(err, ErrSubjectNotFound)
	}
	return dto.NewSubjectResponse(subject), nil
}

func (s *rosterService) DeleteSubject(ctx context.Context, rosterID, subjectID uint) error {
	return s.translate(s.repo.DeleteSubject(ctx, rosterID, subjectID), ErrSubjectNotFound)
}

func (s *rosterService) Evaluate(ctx context.Context, id uint, policyOverride string) (dto.RosterEvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "roster.evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("roster.id", int(id)))

	roster, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return dto.RosterEvaluationResponse{}, err
	}

	policy, err := resolvePolicy(s.engine, policyOverride, roster.Policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid policy")
		return dto.RosterEvaluationResponse{}, err
	}
	span.SetAttributes(
		attribute.String("grading.policy", policy.String()),
		attribute.Int("roster.version", int(roster.Version)),
	)

	cacheKey := fmt.Sprintf("gradebook:evaluation:v1:%d:%d:%s", roster.ID, roster.Version, policy)
	if cached, ok := s.cached(ctx, cacheKey); ok {
		observability.EvaluationCache().WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return dto.RosterEvaluationResponse{
			RosterID:      roster.ID,
			RosterVersion: roster.Version,
			CacheHit:      true,
			Result:        cached,
		}, nil
	}
	if s.cache != nil {
		observability.EvaluationCache().WithLabelValues("miss").Inc()
	}

	start := time.Now()
	result := s.engine.EvaluateWith(dto.GradingRoster(roster), policy)
	observability.EvaluationLatency().WithLabelValues(SourceRoster).Observe(time.Since(start).Seconds())
	observability.Evaluations().WithLabelValues(policy.String(), SourceRoster).Inc()

	snapshot, err := json.Marshal(result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return dto.RosterEvaluationResponse{}, err
	}

	if s.evaluations != nil {
		record := models.EvaluationRecord{
			RosterID:       roster.ID,
			RosterVersion:  roster.Version,
			Policy:         policy.String(),
			OverallAverage: result.OverallAverage,
			Snapshot:       datatypes.JSON(snapshot),
			CreatedAt:      s.now().UTC(),
		}
		if err := s.evaluations.Create(ctx, &record); err != nil {
			s.logger.Warn().Err(err).Uint("roster_id", roster.ID).Msg("failed to record evaluation")
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, snapshot, s.ttl).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache evaluation")
		}
	}

	subjects, modules := result.Validated()
	publishQuietly(ctx, s.events, s.logger, EventRosterEvaluated, rosterEvaluatedEvent{
		RosterID:          roster.ID,
		RosterVersion:     roster.Version,
		Policy:            policy.String(),
		OverallAverage:    result.OverallAverage,
		ValidatedModules:  modules,
		ValidatedSubjects: subjects,
	})

	span.SetStatus(codes.Ok, "evaluated")
	return dto.RosterEvaluationResponse{
		RosterID:      roster.ID,
		RosterVersion: roster.Version,
		Result:        result,
	}, nil
}

func (s *rosterService) History(ctx context.Context, id uint, limit int) ([]dto.EvaluationRecordResponse, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	records, err := s.evaluations.ListByRoster(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EvaluationRecordResponse, 0, len(records))
	for _, record := range records {
		response := dto.EvaluationRecordResponse{
			ID:             record.ID,
			RosterVersion:  record.RosterVersion,
			Policy:         record.Policy,
			OverallAverage: record.OverallAverage,
			CreatedAt:      record.CreatedAt,
		}
		var result grading.Result
		if err := json.Unmarshal(record.Snapshot, &result); err == nil {
			response.Result = &result
		} else {
			s.logger.Warn().Err(err).Uint("record_id", record.ID).Msg("unreadable evaluation snapshot")
		}
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *rosterService) load(ctx context.Context, id uint) (models.Roster, error) {
	roster, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Roster{}, s.translate(err, ErrRosterNotFound)
	}
	return roster, nil
}

func (s *rosterService) cached(ctx context.Context, key string) (grading.Result, bool) {
	if s.cache == nil {
		return grading.Result{}, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("evaluation cache lookup failed")
		}
		return grading.Result{}, false
	}
	var result grading.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return grading.Result{}, false
	}
	return result, true
}

func (s *rosterService) translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

func newModuleModel(req dto.ModuleRequest) models.RosterModule {
	module := models.RosterModule{
		Name:     sanitizeText(req.Name),
		Subjects: make([]models.RosterSubject, 0, len(req.Subjects)),
	}
	for _, subject := range req.Subjects {
		module.Subjects = append(module.Subjects, newSubjectModel(subject))
	}
	return module
}

func newSubjectModel(req dto.SubjectRequest) models.RosterSubject {
	return models.RosterSubject{
		Name:        sanitizeText(req.Name),
		Exam:        storedGrade(req.Exam),
		Devoir:      storedGrade(req.Devoir),
		Coefficient: storedCoefficient(req.Coefficient),
	}
}
