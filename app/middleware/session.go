package middleware

import (
	"github.com/gofiber/fiber/v2"
)

const (
	SessionCookie = "mwanga_session"
	SessionHeader = "X-Session-ID"
	SessionQuery  = "session"

	// SessionLocal is the Locals key holding the raw session id.
	SessionLocal = "session_id"
)

// SessionID looks for a session id in the cookie, then the header, then the query string.
// It never rejects a request; handlers decide whether a session is required.
func SessionID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookie)
		if raw == "" {
			raw = c.Get(SessionHeader)
		}
		if raw == "" {
			raw = c.Query(SessionQuery)
		}
		if raw != "" {
			c.Locals(SessionLocal, raw)
		}
		return c.Next()
	}
}
