package logout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/config"
	signin "github.com/wslogin/google-auth/internal/login"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/handler/login"
	"github.com/wslogin/google-auth/internal/web/session"
)

// Path is the logout route.
const Path = handler.RootPath + "logout"

// Service is the logout handler service.
type Service struct {
	cfg *config.Config
}

// Handler is the logout handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || deps == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg) //nolint:err113
	}

	s.cfg = cfg

	// logout route (outside auth middleware protection)
	app.Get(Path, s.Logout)
	app.Post(Path, s.Logout)

	return nil
}

// Logout ends the session and sends the browser to the login page,
// which forwards logged out users to the site home.
func (s *Service) Logout(c *fiber.Ctx) error {
	if err := session.End(browserstate.FromFiber(c)); err != nil {
		log.Error().Err(err).Msg("failed to delete session")
	}

	return c.Redirect(login.Path + "?" + signin.ParamLoggedOut + "=true")
}
