package daemon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/config"
	dbpkg "github.com/wslogin/google-auth/internal/db"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/identity"
)

// seed creates the default roles and, on an empty user table, the local administrator.
func seed(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if err := dbpkg.SeedRoles(ctx, db); err != nil {
		return err //nolint:wrapcheck
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	if count > 0 || cfg.Admin.Password == "" {
		return nil
	}

	hash, err := models.HashPassword(cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Username:   cfg.Admin.Username,
		Email:      cfg.Admin.Username + "@localhost",
		Password:   hash,
		Active:     true,
		AuthSource: models.AuthSourceLocal,
	}

	store := identity.NewGormStore(db)

	if err = store.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	if _, err = store.ReplaceRoles(ctx, admin.ID, []string{models.RoleAdministrator}); err != nil {
		return fmt.Errorf("grant admin role: %w", err)
	}

	log.Warn().Str("username", admin.Username).Msg("created local administrator, change its password")

	return nil
}
