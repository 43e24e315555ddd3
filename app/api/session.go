package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"mwanga/app/middleware"
	"mwanga/store"
)

// sessionFromLocal parses the session id left in Locals by middleware.SessionID.
func sessionFromLocal(v any) (uuid.UUID, error) {
	raw, _ := v.(string)
	if raw == "" {
		return uuid.Nil, ErrUnAuthorized("no session, upload a document first")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidID()
	}
	return id, nil
}

func sessionID(c *fiber.Ctx) (uuid.UUID, error) {
	return sessionFromLocal(c.Locals(middleware.SessionLocal))
}

// mapStoreErr turns a missing session into a 404.
func mapStoreErr(id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrSessionNotFound) {
		return ErrNotFound(id, "session")
	}
	return err
}

func setSessionCookie(c *fiber.Ctx, id uuid.UUID, ttl time.Duration) {
	cookie := &fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    id.String(),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.Expires = time.Now().Add(ttl)
	}
	c.Cookie(cookie)
}
