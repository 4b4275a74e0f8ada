package postgres

import (
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var attemptSortColumns = map[string]string{
	"started_at":   "started_at",
	"submitted_at": "submitted_at",
	"total_score":  "total_score",
	"status":       "status",
	"id":           "id",
}

// applyPagination clamps limit into (0, maxPageSize]
func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}

func applyExamFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	return query
}

func applyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	return query
}

// applyAttemptSort only accepts whitelisted columns
func applyAttemptSort(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	column, ok := attemptSortColumns[filters.SortBy]
	if !ok {
		column = "id"
	}
	order := "ASC"
	if strings.EqualFold(filters.SortOrder, "desc") {
		order = "DESC"
	}
	return query.Order(column + " " + order)
}

func copyUpdates(updates map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		out[k] = v
	}
	return out
}
