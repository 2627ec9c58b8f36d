// Package auth provides authentication middleware for the web application.
//
// The middleware validates the session cookie, adds the current user to
// fiber.Locals and redirects unauthenticated requests to the login page,
// passing the requested url along in redirect_to.
package auth

import (
	"net/url"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wslogin/google-auth/internal/login"
	"github.com/wslogin/google-auth/internal/web/handler"
	"github.com/wslogin/google-auth/internal/web/navigation"
	"github.com/wslogin/google-auth/internal/web/session"
)

// Config of the middleware.
type Config struct {
	// LoginPath is the login page, "/login" by default.
	LoginPath string
	// LandingPath is where signed in users asking for the login page go, "/dashboard" by default.
	LandingPath string
	// Public lists path prefixes reachable without a session.
	// The site root "/" is always public.
	Public []string
}

// LocalsNavigation is the fiber.Locals key of the header menu.
const LocalsNavigation = "Navigation"

// DefaultPublic are the prefixes reachable without a session.
var DefaultPublic = []string{"/static", "/logout", "/metrics"} //nolint:gochecknoglobals

// New creates the authentication middleware.
func New(cfg Config) fiber.Handler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	if cfg.LandingPath == "" {
		cfg.LandingPath = "/dashboard"
	}

	if cfg.Public == nil {
		cfg.Public = DefaultPublic
	}

	return func(c *fiber.Ctx) error {
		path := strings.ToLower(c.Path())

		if slices.ContainsFunc(cfg.Public, func(p string) bool { return strings.HasPrefix(path, p) }) {
			return c.Next()
		}

		isLoginPage := strings.HasPrefix(path, cfg.LoginPath)

		sessData := new(session.Data)
		if err := sessData.Read(c.Cookies(session.CookieName)); err != nil || sessData.User.ID == 0 {
			if isLoginPage || path == handler.RootPath {
				c.Locals(LocalsNavigation, navigation.ForUser(path, nil))

				return c.Next()
			}

			return c.Redirect(cfg.LoginPath + "?" + login.ParamRedirectTo + "=" + url.QueryEscape(c.OriginalURL()))
		}

		// Add the current user to locals for template access
		c.Locals(handler.LocalsUser, sessData.User)
		c.Locals(LocalsNavigation, navigation.ForUser(path, &sessData.User))

		if isLoginPage && c.Method() == fiber.MethodGet {
			return c.Redirect(cfg.LandingPath)
		}

		return c.Next()
	}
}

// RequireRole only lets users holding one of keys through.
func RequireRole(keys ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := handler.CurrentUser(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		for _, k := range keys {
			if user.HasRole(k) {
				return c.Next()
			}
		}

		return fiber.ErrForbidden
	}
}
