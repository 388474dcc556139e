package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// DocumentRepository persists published PDF metadata.
type DocumentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	Update(ctx context.Context, document *models.Document) error
	GetByID(ctx context.Context, id uint) (models.Document, error)
	FindBySlot(ctx context.Context, slot string) (*models.Document, error)
	List(ctx context.Context, slot string) ([]models.Document, error)
	Delete(ctx context.Context, id uint) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new repository instance.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *documentRepository) Update(ctx context.Context, document *models.Document) error {
	return r.db.WithContext(ctx).Save(document).Error
}

func (r *documentRepository) GetByID(ctx context.Context, id uint) (models.Document, error) {
	var document models.Document
	if err := r.db.WithContext(ctx).First(&document, id).Error; err != nil {
		return models.Document{}, err
	}
	return document, nil
}

// FindBySlot returns nil without error when no document occupies the slot.
func (r *documentRepository) FindBySlot(ctx context.Context, slot string) (*models.Document, error) {
	var document models.Document
	err := r.db.WithContext(ctx).Where("slot = ?", slot).Order("id DESC").First(&document).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &document, nil
}

func (r *documentRepository) List(ctx context.Context, slot string) ([]models.Document, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{})
	if slot = strings.TrimSpace(slot); slot != "" {
		query = query.Where("slot = ?", slot)
	}

	var documents []models.Document
	if err := query.Order("slot ASC").Order("updated_at DESC").Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Document{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
