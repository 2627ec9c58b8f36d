package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wslogin/google-auth/internal/db/models"
)

// GormStore is the AccountStore of the users, user_meta, roles and user_roles tables.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// Transaction implements AccountStore.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx AccountStore) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error { //nolint:wrapcheck
		return fn(&GormStore{DB: tx})
	})
}

// FindByEmail implements AccountStore. The comparison ignores case.
func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User

	err := s.DB.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		Order("id").
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &u, nil
}

// FindByID loads an account with its roles.
func (s *GormStore) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User

	err := s.DB.WithContext(ctx).Preload("Roles").First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &u, nil
}

// FindByUsername loads an account with its roles.
func (s *GormStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User

	err := s.DB.WithContext(ctx).Preload("Roles").Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &u, nil
}

// Create implements AccountStore.
func (s *GormStore) Create(ctx context.Context, u *models.User) error {
	return s.DB.WithContext(ctx).Omit("Roles").Create(u).Error //nolint:wrapcheck
}

// UpdateProfile implements AccountStore.
func (s *GormStore) UpdateProfile(ctx context.Context, u *models.User) error {
	return s.DB.WithContext(ctx).Model(u).Updates(map[string]any{ //nolint:wrapcheck
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"display_name": u.DisplayName,
	}).Error
}

// Meta implements AccountStore.
func (s *GormStore) Meta(ctx context.Context, userID uint64) (models.Meta, error) {
	var rows []models.UserMeta

	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err //nolint:wrapcheck
	}

	meta := make(models.Meta, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}

	return meta, nil
}

// SetMeta implements AccountStore.
func (s *GormStore) SetMeta(ctx context.Context, userID uint64, key, value string) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{ //nolint:wrapcheck
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Omit("User").Create(&models.UserMeta{UserID: userID, Key: key, Value: value}).Error
}

// ReplaceRoles implements AccountStore.
func (s *GormStore) ReplaceRoles(ctx context.Context, userID uint64, keys []string) ([]string, error) {
	var unknown []string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roles []models.Role
		if len(keys) > 0 {
			if err := tx.Where("role_key IN ?", keys).Find(&roles).Error; err != nil {
				return err //nolint:wrapcheck
			}
		}

		byKey := make(map[string]models.Role, len(roles))
		for _, r := range roles {
			byKey[r.Key] = r
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
			return err //nolint:wrapcheck
		}

		for _, k := range keys {
			r, ok := byKey[k]
			if !ok {
				unknown = append(unknown, k)
				continue
			}

			if err := tx.Create(&models.UserRole{UserID: userID, RoleID: r.ID}).Error; err != nil {
				return err //nolint:wrapcheck
			}
		}

		return nil
	})

	return unknown, err //nolint:wrapcheck
}

// RoleKeys implements AccountStore and settings.RoleLister.
func (s *GormStore) RoleKeys(ctx context.Context) ([]string, error) {
	var keys []string

	err := s.DB.WithContext(ctx).Model(&models.Role{}).Order("id").Pluck("role_key", &keys).Error

	return keys, err //nolint:wrapcheck
}

// UpdateEmail changes the email address of userID.
func (s *GormStore) UpdateEmail(ctx context.Context, userID uint64, email string) error {
	return s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID). //nolint:wrapcheck
		Update("email", strings.ToLower(strings.TrimSpace(email))).Error
}

// SetPassword stores the argon2id hash of password for userID.
func (s *GormStore) SetPassword(ctx context.Context, userID uint64, password string) error {
	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID). //nolint:wrapcheck
		Update("password", hash).Error
}

// List returns all accounts with their roles, ordered by id.
func (s *GormStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User

	err := s.DB.WithContext(ctx).Preload("Roles").Order("id").Find(&users).Error

	return users, err //nolint:wrapcheck
}
