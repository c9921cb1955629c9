package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// updateVersioned writes values only when the stored version equals expected,
// bumping the version in the same statement. Zero affected rows means either
// the row is gone or somebody else committed first.
func updateVersioned(tx *gorm.DB, table, docType string, id uuid.UUID, expected int, values map[string]any) error {
	values["version"] = expected + 1
	result := tx.Table(table).
		Where("id = ? AND version = ?", id, expected).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.NewStaleWriteError(docType, id, expected)
}

// replaceChildren swaps the child rows of a document for a new set
func replaceChildren[T any](tx *gorm.DB, parentColumn string, parentID uuid.UUID, rows []T) error {
	var zero T
	if err := tx.Where(parentColumn+" = ?", parentID).Delete(&zero).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// nextCode returns the next sequential code for a prefix and year.
// Format: PREFIX-YYYY-NNNNN (e.g., INV-2026-00001)
func nextCode(ctx context.Context, db *gorm.DB, table, prefix string, now time.Time) (string, error) {
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, now.Year())

	var last string
	err := db.WithContext(ctx).
		Table(table).
		Select("code").
		Where("code LIKE ?", yearPrefix+"%").
		Order("code DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	next := int64(1)
	if last != "" {
		var num int64
		if _, parseErr := fmt.Sscanf(strings.TrimPrefix(last, yearPrefix), "%d", &num); parseErr == nil {
			next = num + 1
		}
	}
	return fmt.Sprintf("%s%05d", yearPrefix, next), nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
