package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wslogin/google-auth/internal/login"
	"github.com/wslogin/google-auth/internal/web/handler"
)

// GoogleCallback completes Google sign-ins before any route runs.
// Requests without the callback marker pass through untouched.
func GoogleCallback(o *login.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := o.OnRequestInit(c.UserContext(), handler.LoginRequest(c))
		if out.Action == login.Redirect {
			return c.Redirect(out.Location)
		}

		return c.Next()
	}
}
