package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

// AttemptPostgreSQL never caches: grading and visibility decisions must
// read the committed row.
type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetByIDForUpdate takes a row lock held until the surrounding transaction ends
func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Preload("Exam").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Answers.Question").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ?", userID, examID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{})
	query = applyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyAttemptSort(applyPagination(query, filters.Limit, filters.Offset), filters)
	if err := query.Preload("Exam").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

func (a *AttemptPostgreSQL) ListIDsByExamAndStatus(ctx context.Context, tx *gorm.DB, examID uint, status models.AttemptStatus) ([]uint, error) {
	db := a.getDB(tx)
	var ids []uint
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND status = ?", examID, status).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// LockByExam locks every attempt of the exam in id order
func (a *AttemptPostgreSQL) LockByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("exam_id = ?", examID).
		Order("id ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus, updates map[string]interface{}) error {
	db := a.getDB(tx)
	values := copyUpdates(updates)
	values["status"] = to
	values["version"] = gorm.Expr("version + 1")

	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrStatusConflict
	}
	return nil
}

func (a *AttemptPostgreSQL) BulkTransitionStatus(ctx context.Context, tx *gorm.DB, examID uint, from, to models.AttemptStatus, updates map[string]interface{}) (int64, error) {
	db := a.getDB(tx)
	values := copyUpdates(updates)
	values["status"] = to
	values["version"] = gorm.Expr("version + 1")

	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND status = ?", examID, from).
		Updates(values)
	return result.RowsAffected, result.Error
}

func (a *AttemptPostgreSQL) UpdateWithVersion(ctx context.Context, tx *gorm.DB, id uint, version int, updates map[string]interface{}) error {
	db := a.getDB(tx)
	values := copyUpdates(updates)
	values["version"] = gorm.Expr("version + 1")

	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrVersionConflict
	}
	return nil
}
