// Package repository provides the GORM data access layer.
package repository

import (
	"errors"

	"newsadvance/internal/models"

	"gorm.io/gorm"
)

// threadOrder applies the comment ordering contract: highest score first,
// then newest, then highest id.
func threadOrder(db *gorm.DB) *gorm.DB {
	return db.Order("cached_score DESC").Order("created_at DESC").Order("id DESC")
}

func approved(db *gorm.DB) *gorm.DB {
	return db.Where("is_approved = ?", true)
}

func paginate(offset, limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}

// mapErr converts a record-not-found into a NotFound AppError and wraps
// anything else as internal.
func mapErr(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
