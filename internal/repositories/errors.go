package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict means the row changed since it was read
	ErrVersionConflict = errors.New("version conflict")

	// ErrStatusConflict means a guarded status update matched no row
	ErrStatusConflict = errors.New("status conflict")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
