// Package google serves the administrator page and json api of the Google sign-in settings.
package google

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/google/settings"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/middleware/auth"
)

const (
	// Path is the settings page.
	Path = handler.RootPath + "admin/settings/google"

	// APIPath is the base of the json api.
	APIPath = handler.RootPath + "api/admin/google-auth"

	// TemplateName is the name of the settings template.
	TemplateName = "admin/settings/google"
)

// ValidateResponse is the answer of the validation rpc.
type ValidateResponse struct {
	Errors []string `json:"errors"`
}

// Service is the Google settings handler service.
type Service struct {
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the Google settings handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the Google settings handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg
	s.deps = deps

	admin := auth.RequireRole(models.RoleAdministrator)

	app.Get(Path, admin, s.Page)

	api := app.Group(APIPath, admin)
	api.Get("/settings", s.Get)
	api.Put("/settings", s.Put)
	api.Post("/validate", s.Validate)

	return nil
}

// Page renders the settings page. The page talks to the json api.
func (s *Service) Page(c *fiber.Ctx) error {
	current := s.deps.Settings.Current()

	data := fiber.Map{
		"Title":       s.cfg.Title,
		"Settings":    current.Redacted(),
		"RedirectURI": s.deps.OAuth.RedirectURI(),
		"APIPath":     APIPath,
	}

	if set, err := s.deps.Endpoints.Get(c.UserContext()); err == nil {
		data["Endpoints"] = set
	} else {
		data["EndpointsError"] = settings.MsgDiscovery
	}

	if roles, err := s.deps.Accounts.RoleKeys(c.UserContext()); err == nil {
		data["Roles"] = roles
	}

	return c.Render(TemplateName, data, handler.BaseLayout)
}

// Get returns the current settings without the client secret.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.JSON(s.deps.Settings.Current().Redacted())
}

// Put sanitizes, validates and stores the submitted settings.
// Settings failing validation are stored too but stay unconfigured,
// which keeps the login page on the local form.
func (s *Service) Put(c *fiber.Ctx) error {
	candidate, err := s.parse(c)
	if err != nil {
		return err
	}

	res := s.deps.Validator.Sanitize(c.UserContext(), candidate)

	if err = s.deps.Settings.Save(c.UserContext(), res.Settings); err != nil {
		log.Error().Err(err).Msg("failed to save google sign-in settings")

		return fiber.ErrInternalServerError
	}

	log.Info().
		Str("client_id", res.Settings.ClientID).
		Int("patterns", len(res.Settings.EmailPatterns)).
		Bool("configured", res.Settings.Configured).
		Msg("google sign-in settings saved")

	res.Settings = res.Settings.Redacted()

	status := fiber.StatusOK
	if len(res.Errors) > 0 {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(res)
}

// Validate checks the submitted settings without storing them.
func (s *Service) Validate(c *fiber.Ctx) error {
	candidate, err := s.parse(c)
	if err != nil {
		return err
	}

	return c.JSON(ValidateResponse{Errors: s.deps.Validator.Validate(c.UserContext(), candidate)})
}

// parse reads settings from the body. A masked secret keeps the stored one.
func (s *Service) parse(c *fiber.Ctx) (settings.Settings, error) {
	candidate := settings.Defaults()

	if err := c.BodyParser(&candidate); err != nil {
		log.Debug().Err(err).Msg("failed to parse google sign-in settings")

		return settings.Settings{}, fiber.NewError(fiber.StatusBadRequest, "invalid settings")
	}

	if candidate.ClientSecret == settings.SecretMask {
		candidate.ClientSecret = s.deps.Settings.Current().ClientSecret
	}

	return candidate, nil
}
