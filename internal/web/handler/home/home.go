// Package home renders the public start page.
package home

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/web/handler"
)

// TemplateName is the name of the home template.
const TemplateName = "home"

// Service is the home handler service.
type Service struct {
	cfg *config.Config
}

// Handler is the home handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init registers the site root.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg

	app.Get(handler.RootPath, s.Get)

	return nil
}

// Get renders the start page.
func (s *Service) Get(c *fiber.Ctx) error {
	data := fiber.Map{"Title": s.cfg.Title}

	if user, ok := handler.CurrentUser(c); ok {
		data["CurrentUser"] = user
	}

	return c.Render(TemplateName, data, handler.BaseLayout)
}
