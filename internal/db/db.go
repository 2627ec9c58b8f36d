// Package db opens and migrates the account and settings database.
package db

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/db/dsn"
	"github.com/wslogin/google-auth/internal/db/models"
)

// Open connects gorm with the driver of the configured engine.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		dialector = mysql.Open(dsn.Create(cfg))
	case config.EnginePostgres:
		dialector = postgres.Open(dsn.Create(cfg))
	case config.EngineSQLite, "":
		dialector = sqlite.Open(dsn.Create(cfg))
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownGormEngine, cfg.DB.GormEngine)
	}

	logLevel := gormlogger.Silent
	if cfg.DevMode {
		logLevel = gormlogger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DB.GormEngine, err)
	}

	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.User{}, "Roles", &models.UserRole{}); err != nil {
		return fmt.Errorf("setup user roles join table: %w", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	return nil
}

// DefaultRoles are created on first start.
func DefaultRoles() []models.Role {
	return []models.Role{
		{Key: models.RoleAdministrator, Name: "Administrator", Description: "Full access including the Google sign-in settings", IsSystem: true},
		{Key: models.RoleEditor, Name: "Editor", IsSystem: true},
		{Key: models.RoleAuthor, Name: "Author", IsSystem: true},
		{Key: models.RoleContributor, Name: "Contributor", IsSystem: true},
		{Key: models.RoleSubscriber, Name: "Subscriber", IsSystem: true},
	}
}

// SeedRoles creates the missing default roles.
func SeedRoles(ctx context.Context, db *gorm.DB) error {
	for _, r := range DefaultRoles() {
		role := r
		if err := db.WithContext(ctx).Where(models.Role{Key: r.Key}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Key, err)
		}
	}

	return nil
}
