package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/google/endpoints"
	"github.com/wslogin/google-auth/internal/google/oauth"
	"github.com/wslogin/google-auth/internal/google/settings"
	"github.com/wslogin/google-auth/internal/identity"
	"github.com/wslogin/google-auth/internal/login"
	"github.com/wslogin/google-auth/internal/web/session"
)

// Deps are the services shared by the web handlers.
type Deps struct {
	DB        *gorm.DB
	Login     *login.Orchestrator
	OAuth     *oauth.Client
	Settings  *settings.Service
	Validator *settings.Validator
	Endpoints *endpoints.Cache
	Accounts  *identity.GormStore
	Mapper    *identity.Mapper
	Sessions  session.Starter
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, deps *Deps) error
}
