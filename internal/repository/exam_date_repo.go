package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// ExamDateRepository exposes persistence helpers for the exam calendar.
type ExamDateRepository interface {
	Upsert(ctx context.Context, item *models.ExamDate) error
	GetByKey(ctx context.Context, key string) (models.ExamDate, error)
	List(ctx context.Context) ([]models.ExamDate, error)
	Delete(ctx context.Context, key string) error
}

type examDateRepository struct {
	db *gorm.DB
}

// NewExamDateRepository constructs the repository implementation.
func NewExamDateRepository(db *gorm.DB) ExamDateRepository {
	return &examDateRepository{db: db}
}

func (r *examDateRepository) Upsert(ctx context.Context, item *models.ExamDate) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exam_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "exam_date", "updated_at"}),
	}).Create(item).Error
	if err != nil {
		return err
	}

	// The conflict path leaves the primary key unset on some drivers.
	stored, err := r.GetByKey(ctx, item.Key)
	if err != nil {
		return err
	}
	*item = stored
	return nil
}

func (r *examDateRepository) GetByKey(ctx context.Context, key string) (models.ExamDate, error) {
	var item models.ExamDate
	if err := r.db.WithContext(ctx).Where("exam_key = ?", key).First(&item).Error; err != nil {
		return models.ExamDate{}, err
	}
	return item, nil
}

func (r *examDateRepository) List(ctx context.Context) ([]models.ExamDate, error) {
	var items []models.ExamDate
	if err := r.db.WithContext(ctx).Order("exam_date ASC").Order("key ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *examDateRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("exam_key = ?", key).Delete(&models.ExamDate{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
