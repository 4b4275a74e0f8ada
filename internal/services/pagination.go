package services

import (
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func newPaginatedResponse(data interface{}, total int64, page, size int) *models.PaginatedResponse {
	pages := int((total + int64(size) - 1) / int64(size))
	return &models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
	}
}
