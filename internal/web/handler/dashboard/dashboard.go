// Package dashboard provides the landing page of signed in users.
package dashboard

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/web/handler"
)

const (
	// Path is the path to the dashboard page.
	Path = handler.RootPath + "dashboard"

	// TemplateName is the name of the dashboard template.
	TemplateName = "dashboard"
)

// Service is the dashboard handler service.
type Service struct {
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the dashboard handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg
	s.deps = deps

	app.Get(Path, s.Get)

	return nil
}

// Get renders the dashboard of the current user.
func (s *Service) Get(c *fiber.Ctx) error {
	current, ok := handler.CurrentUser(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	ctx := c.UserContext()

	// roles may have changed since the session was written
	user, err := s.deps.Accounts.FindByID(ctx, current.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user", current.ID).Msg("failed to load user")

		return fiber.ErrInternalServerError
	}

	meta, err := s.deps.Mapper.Meta(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user", user.ID).Msg("failed to load user meta")

		meta = models.Meta{}
	}

	return c.Render(TemplateName, fiber.Map{
		"Title":        s.cfg.Title,
		"CurrentUser":  user,
		"Roles":        user.RoleKeys(),
		"Picture":      meta[models.MetaPicture],
		"GoogleLinked": meta.GoogleLinked(),
	}, handler.BaseLayout)
}
