package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/cache"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

type cachedExamList struct {
	Exams []*models.Exam `json:"exams"`
	Total int64          `json:"total"`
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).Create(exam).Error
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

// GetByIDForUpdate must run inside a transaction
func (e *ExamPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error {
	db := e.getDB(tx)
	result := db.WithContext(ctx).Model(&models.Exam{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx)
	var exams []*models.Exam
	var total int64

	query := db.WithContext(ctx).Model(&models.Exam{})
	query = applyExamFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset).Order("id DESC")
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

// GetCached returns the exam with its questions
func (e *ExamPostgreSQL) GetCached(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.cacheManager.Exam.CacheOrExecute(ctx, cache.ExamKey(id), &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := e.db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("order_number ASC, id ASC")
			}).
			First(&dbExam, id).Error; err != nil {
			return nil, err
		}
		return &dbExam, nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) ListCached(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	status, createdBy := "all", "any"
	if filters.Status != nil {
		status = string(*filters.Status)
	}
	if filters.CreatedBy != nil {
		createdBy = *filters.CreatedBy
	}
	key := fmt.Sprintf("%s:%s:%d:%d", status, createdBy, filters.Limit, filters.Offset)

	var result cachedExamList
	err := e.cacheManager.ExamList.CacheOrExecute(ctx, key, &result, cache.ExamListCacheConfig.TTL, func() (interface{}, error) {
		exams, total, err := e.List(ctx, nil, filters)
		if err != nil {
			return nil, err
		}
		return &cachedExamList{Exams: exams, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result.Exams, result.Total, nil
}

func (e *ExamPostgreSQL) InvalidateCache(ctx context.Context, id uint) {
	cache.InvalidateExamCache(ctx, e.cacheManager, id)
}
