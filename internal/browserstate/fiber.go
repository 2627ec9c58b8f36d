package browserstate

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// FiberJar adapts a fiber request to Jar.
type FiberJar struct {
	c *fiber.Ctx
	// pending holds values set during this request, fiber only exposes request cookies.
	pending map[string]*string
}

// FromFiber returns the Jar of the current fiber request.
func FromFiber(c *fiber.Ctx) *FiberJar {
	return &FiberJar{c: c, pending: map[string]*string{}}
}

// Get implements Jar.
func (j *FiberJar) Get(name string) string {
	if v, ok := j.pending[name]; ok {
		if v == nil {
			return ""
		}

		return *v
	}

	return j.c.Cookies(name)
}

// Set implements Jar.
func (j *FiberJar) Set(s State) {
	cookie := &fiber.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		HTTPOnly: s.HTTPOnly,
		Secure:   j.IsTLS(),
		SameSite: sameSite(s.SameSite),
	}

	if s.Expired() {
		cookie.Expires = time.Unix(0, 0)
		cookie.MaxAge = -1
		j.pending[s.Name] = nil
	} else {
		if s.TTL > 0 {
			cookie.Expires = time.Now().Add(s.TTL)
		}

		v := s.Value
		j.pending[s.Name] = &v
	}

	j.c.Cookie(cookie)
}

// IsTLS implements Jar.
func (j *FiberJar) IsTLS() bool {
	return j.c.Secure()
}

func sameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return fiber.CookieSameSiteStrictMode
	case http.SameSiteNoneMode:
		return fiber.CookieSameSiteNoneMode
	default:
		return fiber.CookieSameSiteLaxMode
	}
}
