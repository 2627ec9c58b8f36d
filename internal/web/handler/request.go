package handler

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/wslogin/google-auth/internal/browserstate"
	"github.com/wslogin/google-auth/internal/db/models"
	"github.com/wslogin/google-auth/internal/login"
)

// Query returns the parsed query string of the request.
// Keys without a value, like "noopenid", are kept with an empty value.
func Query(c *fiber.Ctx) url.Values {
	// malformed pairs are dropped, the rest is kept
	q, _ := url.ParseQuery(string(c.Request().URI().QueryString())) //nolint:errcheck

	return q
}

// LoginRequest builds the orchestrator view of the request.
func LoginRequest(c *fiber.Ctx) login.Request {
	return login.Request{
		Method: c.Method(),
		Query:  Query(c),
		Jar:    browserstate.FromFiber(c),
	}
}

// CurrentUser returns the signed in user set by the auth middleware.
func CurrentUser(c *fiber.Ctx) (models.User, bool) {
	u, ok := c.Locals(LocalsUser).(models.User)

	return u, ok && u.ID > 0
}
