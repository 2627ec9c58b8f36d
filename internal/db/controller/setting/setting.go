// Package setting stores named JSON settings in the settings table.
package setting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wslogin/google-auth/internal/db/models"
)

const (
	nameQueryPattern = "name = ?"
)

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingNameEmpty is returned when attempting to read or write a setting with an empty name.
	ErrSettingNameEmpty = errors.New("setting name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a setting by its name.
func Get(ctx context.Context, db *gorm.DB, name string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting

	result := db.WithContext(ctx).Where(nameQueryPattern, name).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}

		return nil, result.Error
	}

	return &setting, nil
}

// Set creates or replaces a setting by name in a single upsert statement.
func Set(ctx context.Context, db *gorm.DB, name string, value []byte) error {
	if db == nil {
		return ErrDBNil
	}

	if name == "" {
		return ErrSettingNameEmpty
	}

	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Name: name, Value: value})

	return result.Error
}

// DeleteByName deletes a setting by name.
func DeleteByName(ctx context.Context, db *gorm.DB, name string) error {
	if db == nil {
		return ErrDBNil
	}

	if name == "" {
		return ErrSettingNameEmpty
	}

	result := db.WithContext(ctx).Where(nameQueryPattern, name).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

// LoadJSON decodes the named setting into v.
func LoadJSON(ctx context.Context, db *gorm.DB, name string, v any) error {
	s, err := Get(ctx, db, name)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(s.Value, v); err != nil {
		return fmt.Errorf("decode setting %s: %w", name, err)
	}

	return nil
}

// SaveJSON encodes v and stores it under name.
func SaveJSON(ctx context.Context, db *gorm.DB, name string, v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", name, err)
	}

	return Set(ctx, db, name, out)
}
