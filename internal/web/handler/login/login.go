// Package login renders the host login page and handles local password logins.
//
// A plain GET is handed to the Google sign-in first; the page itself is only
// shown when the sign-in defers, for example behind ?noopenid or after a
// failed sign-in.
package login

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/config"
	"github.com/wslogin/google-auth/internal/identity"
	signin "github.com/wslogin/google-auth/internal/login"
	"github.com/wslogin/google-auth/internal/web/handler"
)

const (
	// Path is the path to the login page.
	Path = "/login"

	// TemplateName is the name of the login template.
	TemplateName = "login"
)

// Form is the local login form.
type Form struct {
	Username   string `form:"username" validate:"required"`
	Password   string `form:"password" validate:"required"`
	RedirectTo string `form:"redirect_to"`
}

// Service is the login handler service.
type Service struct {
	cfg       *config.Config
	deps      *handler.Deps
	validator *validator.Validate
}

// Handler is the login handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg
	s.deps = deps
	s.validator = validator.New()

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// Get hands the request to the Google sign-in and renders the login page when it defers.
func (s *Service) Get(c *fiber.Ctx) error {
	out := s.deps.Login.OnLoginPageRequest(c.UserContext(), handler.LoginRequest(c))
	if out.Action == signin.Redirect {
		return c.Redirect(out.Location)
	}

	data := s.pageData(c)

	if out.Reason == signin.ReasonDiscoveryDoc {
		data["google_error"] = signin.Message(string(out.Reason))
	}

	return c.Render(TemplateName, data, handler.BaseLayout)
}

// Post handles the local login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	form := new(Form)
	if err := c.BodyParser(form); err != nil {
		log.Debug().Err(err).Msg("failed to parse login form")

		return s.renderError(c, fiber.StatusBadRequest, ErrInvalidFormData)
	}

	if err := s.validator.Struct(form); err != nil {
		return s.renderError(c, fiber.StatusBadRequest, ErrInvalidCredentials)
	}

	ctx := c.UserContext()

	user, err := s.deps.Accounts.FindByUsername(ctx, form.Username)
	if err != nil {
		if !errors.Is(err, identity.ErrAccountNotFound) {
			log.Error().Err(err).Msg("failed to load user")
		}

		return s.renderError(c, fiber.StatusUnauthorized, ErrInvalidCredentials)
	}

	if !user.Active {
		return s.renderError(c, fiber.StatusForbidden, ErrInactive)
	}

	if !user.VerifyPassword(form.Password) {
		return s.renderError(c, fiber.StatusUnauthorized, ErrInvalidCredentials)
	}

	if err = s.deps.Sessions.Start(ctx, browserstate.FromFiber(c), user); err != nil {
		log.Error().Err(err).Msg("failed to start session")

		return s.renderError(c, fiber.StatusInternalServerError, ErrInternalServerError)
	}

	log.Info().Str("username", user.Username).Msg("local login succeeded")

	target := s.deps.Login.SafeRedirect(form.RedirectTo)
	if target == "" {
		target = s.deps.Login.LandingPath()
	}

	return c.Redirect(target)
}

func (s *Service) renderError(c *fiber.Ctx, status int, err error) error {
	data := s.pageData(c)
	data["error"] = err.Error()

	return c.Status(status).Render(TemplateName, data, handler.BaseLayout)
}

// pageData collects the template data shared by every rendering of the login page.
func (s *Service) pageData(c *fiber.Ctx) fiber.Map {
	q := handler.Query(c)

	redirectTo := q.Get(signin.ParamRedirectTo)
	if redirectTo == "" {
		redirectTo = c.FormValue(signin.ParamRedirectTo)
	}

	data := fiber.Map{
		"Title":          s.cfg.Title,
		"google_enabled": s.deps.Settings.Current().Configured,
		"google_url":     Path,
		"redirect_to":    redirectTo,
	}

	if reason := q.Get(s.deps.Login.ErrorParam()); reason != "" {
		data["google_error"] = signin.Message(reason)
		data["google_notice"] = signin.FallbackNotice(Path)
	}

	return data
}
