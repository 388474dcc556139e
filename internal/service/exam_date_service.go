package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/repository"
)

var (
	// ErrExamDateNotFound indicates no exam session is registered under the key.
	ErrExamDateNotFound = errors.New("exam date not found")
	// ErrInvalidExamDate indicates the date could not be parsed.
	ErrInvalidExamDate = errors.New("exam date must be formatted as YYYY-MM-DD")
	// ErrInvalidExamKey indicates a malformed session key.
	ErrInvalidExamKey = errors.New("exam key must contain letters, digits, '-' or '_'")
)

var examKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ExamDateService manages the exam calendar.
type ExamDateService interface {
	Set(ctx context.Context, key string, req dto.ExamDateRequest) (dto.ExamDateResponse, error)
	List(ctx context.Context) ([]dto.ExamDateResponse, error)
	Delete(ctx context.Context, key string) error
}

type examDateService struct {
	repo      repository.ExamDateRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExamDateService constructs the exam calendar service.
func NewExamDateService(repo repository.ExamDateRepository, validate *validator.Validate, logger zerolog.Logger) ExamDateService {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &examDateService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "exam_date_service").Logger(),
		now:       time.Now,
	}
}

func (s *examDateService) Set(ctx context.Context, key string, req dto.ExamDateRequest) (dto.ExamDateResponse, error) {
	key, err := normalizeExamKey(key)
	if err != nil {
		return dto.ExamDateResponse{}, err
	}

	req.Title = sanitizeText(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return dto.ExamDateResponse{}, err
	}

	date, err := parseExamDate(req.ExamDate)
	if err != nil {
		return dto.ExamDateResponse{}, err
	}

	item := models.ExamDate{Key: key, Title: req.Title, ExamDate: date}
	if err := s.repo.Upsert(ctx, &item); err != nil {
		return dto.ExamDateResponse{}, err
	}

	s.logger.Info().Str("key", key).Time("exam_date", date).Msg("exam date updated")
	return s.toResponse(item), nil
}

func (s *examDateService) List(ctx context.Context) ([]dto.ExamDateResponse, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ExamDateResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, s.toResponse(item))
	}
	return responses, nil
}

func (s *examDateService) Delete(ctx context.Context, key string) error {
	key, err := normalizeExamKey(key)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExamDateNotFound
		}
		return err
	}
	return nil
}

func (s *examDateService) toResponse(item models.ExamDate) dto.ExamDateResponse {
	days := daysUntil(s.now(), item.ExamDate)
	return dto.ExamDateResponse{
		Key:           item.Key,
		Title:         item.Title,
		ExamDate:      item.ExamDate.UTC(),
		DaysRemaining: days,
		Passed:        days < 0,
	}
}

func normalizeExamKey(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if !examKeyPattern.MatchString(key) {
		return "", ErrInvalidExamKey
	}
	return key, nil
}

// parseExamDate accepts a calendar date or an RFC 3339 timestamp and keeps the UTC calendar day.
func parseExamDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if date, err := time.Parse("2006-01-02", raw); err == nil {
		return date.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return startOfDay(ts), nil
	}
	return time.Time{}, ErrInvalidExamDate
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysUntil counts calendar days from now to the exam day; negative once the day has passed.
func daysUntil(now, exam time.Time) int {
	return int(startOfDay(exam).Sub(startOfDay(now)).Hours() / 24)
}
