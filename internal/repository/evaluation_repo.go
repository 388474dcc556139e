package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// EvaluationRepository stores evaluation snapshots.
type EvaluationRepository interface {
	Create(ctx context.Context, record *models.EvaluationRecord) error
	ListByRoster(ctx context.Context, rosterID uint, limit int) ([]models.EvaluationRecord, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs the GORM implementation.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, record *models.EvaluationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *evaluationRepository) ListByRoster(ctx context.Context, rosterID uint, limit int) ([]models.EvaluationRecord, error) {
	query := r.db.WithContext(ctx).
		Where("roster_id = ?", rosterID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.EvaluationRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
