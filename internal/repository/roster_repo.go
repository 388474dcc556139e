package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// RosterFilter describes pagination & search options.
type RosterFilter struct {
	Search   string
	Page     int
	PageSize int
}

// RosterRepository defines persistence operations for rosters, their modules and subjects.
// Every mutation of a module or subject bumps the owning roster version.
type RosterRepository interface {
	List(ctx context.Context, filter RosterFilter) ([]models.Roster, int64, error)
	GetByID(ctx context.Context, id uint) (models.Roster, error)
	Create(ctx context.Context, roster *models.Roster) error
	Update(ctx context.Context, roster *models.Roster) error
	Delete(ctx context.Context, id uint) error

	GetModule(ctx context.Context, rosterID, moduleID uint) (models.RosterModule, error)
	CreateModule(ctx context.Context, module *models.RosterModule) error
	UpdateModule(ctx context.Context, module *models.RosterModule) error
	DeleteModule(ctx context.Context, rosterID, moduleID uint) error

	GetSubject(ctx context.Context, rosterID, subjectID uint) (models.RosterSubject, error)
	CreateSubject(ctx context.Context, subject *models.RosterSubject) error
	UpdateSubject(ctx context.Context, subject *models.RosterSubject) error
	DeleteSubject(ctx context.Context, rosterID, subjectID uint) error
}

type rosterRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRosterRepository instantiates a GORM-backed repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db, now: time.Now}
}

func orderedByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("id ASC")
}

func (r *rosterRepository) List(ctx context.Context, filter RosterFilter) ([]models.Roster, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Roster{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(student_name) LIKE ? OR LOWER(student_number) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var rosters []models.Roster
	if err := query.Order("updated_at DESC").Order("id DESC").Find(&rosters).Error; err != nil {
		return nil, 0, err
	}

	return rosters, total, nil
}

func (r *rosterRepository) GetByID(ctx context.Context, id uint) (models.Roster, error) {
	var roster models.Roster
	err := r.db.WithContext(ctx).
		Preload("Modules", orderedByPosition).
		Preload("Modules.Subjects", orderedByPosition).
		First(&roster, id).Error
	if err != nil {
		return models.Roster{}, err
	}

	return roster, nil
}

func (r *rosterRepository) Create(ctx context.Context, roster *models.Roster) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if roster.Version == 0 {
			roster.Version = 1
		}
		if err := tx.Omit(clause.Associations).Create(roster).Error; err != nil {
			return err
		}

		for i := range roster.Modules {
			module := &roster.Modules[i]
			module.RosterID = roster.ID
			module.Position = i
			if err := tx.Omit(clause.Associations).Create(module).Error; err != nil {
				return err
			}

			for j := range module.Subjects {
				subject := &module.Subjects[j]
				subject.RosterID = roster.ID
				subject.ModuleID = module.ID
				subject.Position = j
				if err := tx.Create(subject).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}

func (r *rosterRepository) Update(ctx context.Context, roster *models.Roster) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Roster{}).
			Where("id = ?", roster.ID).
			Updates(map[string]interface{}{
				"student_name":   roster.StudentName,
				"student_number": roster.StudentNumber,
				"policy":         roster.Policy,
				"version":        gorm.Expr("version + 1"),
				"updated_at":     r.now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var stored models.Roster
		if err := tx.Select("version", "updated_at").First(&stored, roster.ID).Error; err != nil {
			return err
		}
		roster.Version = stored.Version
		roster.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (r *rosterRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Roster{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("roster_id = ?", id).Delete(&models.RosterSubject{}).Error; err != nil {
			return err
		}
		if err := tx.Where("roster_id = ?", id).Delete(&models.RosterModule{}).Error; err != nil {
			return err
		}
		return tx.Where("roster_id = ?", id).Delete(&models.EvaluationRecord{}).Error
	})
}

func (r *rosterRepository) GetModule(ctx context.Context, rosterID, moduleID uint) (models.RosterModule, error) {
	var module models.RosterModule
	err := r.db.WithContext(ctx).
		Preload("Subjects", orderedByPosition).
		Where("roster_id = ?", rosterID).
		First(&module, moduleID).Error
	if err != nil {
		return models.RosterModule{}, err
	}
	return module, nil
}

func (r *rosterRepository) CreateModule(ctx context.Context, module *models.RosterModule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureRoster(tx, module.RosterID); err != nil {
			return err
		}

		position, err := nextPosition(tx, &models.RosterModule{}, "roster_id = ?", module.RosterID)
		if err != nil {
			return err
		}
		module.Position = position

		if err := tx.Omit(clause.Associations).Create(module).Error; err != nil {
			return err
		}

		for j := range module.Subjects {
			subject := &module.Subjects[j]
			subject.RosterID = module.RosterID
			subject.ModuleID = module.ID
			subject.Position = j
			if err := tx.Create(subject).Error; err != nil {
				return err
			}
		}

		return r.bumpVersion(tx, module.RosterID)
	})
}

func (r *rosterRepository) UpdateModule(ctx context.Context, module *models.RosterModule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RosterModule{}).
			Where("id = ? AND roster_id = ?", module.ID, module.RosterID).
			Updates(map[string]interface{}{"name": module.Name, "updated_at": r.now().UTC()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return r.bumpVersion(tx, module.RosterID)
	})
}

func (r *rosterRepository) DeleteModule(ctx context.Context, rosterID, moduleID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("roster_id = ?", rosterID).Delete(&models.RosterModule{}, moduleID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("module_id = ?", moduleID).Delete(&models.RosterSubject{}).Error; err != nil {
			return err
		}
		return r.bumpVersion(tx, rosterID)
	})
}

func (r *rosterRepository) GetSubject(ctx context.Context, rosterID, subjectID uint) (models.RosterSubject, error) {
	var subject models.RosterSubject
	if err := r.db.WithContext(ctx).Where("roster_id = ?", rosterID).First(&subject, subjectID).Error; err != nil {
		return models.RosterSubject{}, err
	}
	return subject, nil
}

func (r *rosterRepository) CreateSubject(ctx context.Context, subject *models.RosterSubject) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RosterModule{}).
			Where("id = ? AND roster_id = ?", subject.ModuleID, subject.RosterID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		position, err := nextPosition(tx, &models.RosterSubject{}, "module_id = ?", subject.ModuleID)
		if err != nil {
			return err
		}
		subject.Position = position

		if err := tx.Create(subject).Error; err != nil {
			return err
		}
		return r.bumpVersion(tx, subject.RosterID)
	})
}

func (r *rosterRepository) UpdateSubject(ctx context.Context, subject *models.RosterSubject) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RosterSubject{}).
			Where("id = ? AND roster_id = ?", subject.ID, subject.RosterID).
			Select("name", "exam", "devoir", "coefficient", "updated_at").
			Updates(map[string]interface{}{
				"name":        subject.Name,
				"exam":        subject.Exam,
				"devoir":      subject.Devoir,
				"coefficient": subject.Coefficient,
				"updated_at":  r.now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return r.bumpVersion(tx, subject.RosterID)
	})
}

func (r *rosterRepository) DeleteSubject(ctx context.Context, rosterID, subjectID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("roster_id = ?", rosterID).Delete(&models.RosterSubject{}, subjectID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return r.bumpVersion(tx, rosterID)
	})
}

func (r *rosterRepository) ensureRoster(tx *gorm.DB, rosterID uint) error {
	var count int64
	if err := tx.Model(&models.Roster{}).Where("id = ?", rosterID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *rosterRepository) bumpVersion(tx *gorm.DB, rosterID uint) error {
	return tx.Model(&models.Roster{}).
		Where("id = ?", rosterID).
		Updates(map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": r.now().UTC(),
		}).Error
}

func nextPosition(tx *gorm.DB, model interface{}, where string, args ...interface{}) (int, error) {
	var max int
	if err := tx.Model(model).Where(where, args...).Select("COALESCE(MAX(position), -1)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}
